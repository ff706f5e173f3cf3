package mcpadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docqa/internal/core/ports"
)

// Tools exposes upload, query and session listing as MCP tools.
type Tools struct {
	uploader ports.DocumentUploader
	queries  ports.DocumentQueryService
	catalog  ports.SessionCatalog
}

func NewTools(uploader ports.DocumentUploader, queries ports.DocumentQueryService, catalog ports.SessionCatalog) *Tools {
	return &Tools{uploader: uploader, queries: queries, catalog: catalog}
}

func (t *Tools) NewServer(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Index a PDF or image for question answering and return its session id. "+
			"Pass either a local path or base64 content with a filename."),
		mcp.WithString("path", mcp.Description("Local file path readable by the server")),
		mcp.WithString("content_base64", mcp.Description("Base64 encoded file content")),
		mcp.WithString("filename", mcp.Description("File name, required with content_base64")),
		mcp.WithString("mime_type", mcp.Description("Content type; derived from the file extension when omitted")),
	), t.uploadDocument)

	s.AddTool(mcp.NewTool("query_document",
		mcp.WithDescription("Answer a question using the indexed document of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by upload_document")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the document")),
	), t.queryDocument)

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live document sessions."),
	), t.listSessions)

	return s
}

func (t *Tools) uploadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	encoded := req.GetString("content_base64", "")
	filename := req.GetString("filename", "")
	mimeType := req.GetString("mime_type", "")

	var data []byte
	switch {
	case path != "":
		raw, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
		}
		data = raw
		if filename == "" {
			filename = filepath.Base(path)
		}
	case encoded != "":
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return mcp.NewToolResultError("content_base64 is not valid base64"), nil
		}
		if filename == "" {
			return mcp.NewToolResultError("filename is required with content_base64"), nil
		}
		data = raw
	default:
		return mcp.NewToolResultError("either path or content_base64 is required"), nil
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	}

	result, err := t.uploader.Upload(ctx, filename, mimeType, bytes.NewReader(data))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (t *Tools) queryDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.queries.Query(ctx, sessionID, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (t *Tools) listSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.catalog.ListSessions())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
