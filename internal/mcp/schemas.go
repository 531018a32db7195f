package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semchunk/internal/segmenter"
)

// optionProperties are the chunking parameters shared by every tool that
// runs the pipeline
func optionProperties() map[string]interface{} {
	return map[string]interface{}{
		"buffer_size": map[string]interface{}{
			"type":        "integer",
			"description": "Neighbouring units on each side included in a unit's context window",
			"default":     1,
			"minimum":     0,
		},
		"percentile_threshold": map[string]interface{}{
			"type":        "number",
			"description": "Percentile of the distance distribution above which a boundary is placed (0-100)",
			"default":     80,
			"minimum":     0.0,
			"maximum":     100.0,
		},
		"min_chunk_sentences": map[string]interface{}{
			"type":        "integer",
			"description": "Chunks with fewer units are merged into a neighbour",
			"default":     2,
			"minimum":     1,
		},
	}
}

func withOptions(props map[string]interface{}) map[string]interface{} {
	for k, v := range optionProperties() {
		props[k] = v
	}
	return props
}

// chunkTextTool returns the tool definition for chunk_text
func chunkTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_text",
		Description: "Split text into semantically coherent chunks at topic shifts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withOptions(map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Plain text or SRT subtitle content to chunk",
				},
				"segmenter": map[string]interface{}{
					"type":        "string",
					"description": "How text is split into units before chunking",
					"enum":        []string{segmenter.NameAuto, segmenter.NameSentence, segmenter.NameSubtitle, segmenter.NameFixed},
					"default":     segmenter.NameAuto,
				},
			}),
			Required: []string{"text"},
		},
	}
}

// chunkFileTool returns the tool definition for chunk_file
func chunkFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_file",
		Description: "Load a text, markdown, subtitle or PDF file and return its chunks without storing them",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withOptions(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .txt, .md, .srt or .pdf file",
				},
			}),
			Required: []string{"path"},
		},
	}
}

// indexPathTool returns the tool definition for index_path
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Chunk every supported file under a directory (or a single file) and store the chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withOptions(map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a directory or file",
				},
			}),
			Required: []string{"path"},
		},
	}
}

// getChunksTool returns the tool definition for get_chunks
func getChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunks",
		Description: "Return the stored chunks of an indexed document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of an indexed document",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Full-text search over stored chunks, ranked by BM25",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Keywords to search for",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored document and chunk counts and the embedding configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
