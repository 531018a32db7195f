// Package mcp implements the Model Context Protocol (MCP) server for semchunk.
//
// The server exposes six tools:
//   - chunk_text: Chunk a piece of text and return the chunks
//   - chunk_file: Chunk a file on disk without storing the result
//   - index_path: Chunk and store every supported file under a path
//   - get_chunks: Return the stored chunks of one document
//   - search_chunks: Full-text search over stored chunks
//   - get_status: Report store statistics and embedding configuration
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	semchunk serve
//
// # Tool: chunk_text
//
//	Request:
//	{
//	  "name": "chunk_text",
//	  "arguments": {
//	    "text": "The cat sat on the mat. ...",
//	    "buffer_size": 1,
//	    "percentile_threshold": 80,
//	    "min_chunk_sentences": 2,
//	    "segmenter": "auto"
//	  }
//	}
//
//	Response:
//	{
//	  "segmenter": "sentence",
//	  "unit_count": 6,
//	  "chunk_count": 2,
//	  "threshold": 0.41,
//	  "shift_indices": [2],
//	  "chunks": [
//	    {
//	      "content": "The cat sat on the mat. ...",
//	      "metadata": {
//	        "sentence_count": 3,
//	        "start_sentence_index": 0,
//	        "end_sentence_index": 2
//	      }
//	    }
//	  ]
//	}
//
// Subtitle chunks also carry subtitle_index, start_time, end_time and
// timestamp in their metadata.
//
// Chunking parameters omitted from chunk_text, chunk_file or index_path fall
// back to the options the server was started with.
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Path does not exist
//	-32002  Indexing already in progress
//	-32003  Document not indexed
//	-32004  Empty search query
//	-32005  Text has fewer than two units
package mcp
