package main

import (
	"flag"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"AIAssistant/backend/go/pkg/tools/dataserver"
)

// STDIO transport (default)
//go run main.go -workbook=warehouse.xlsx
//
// SSE transport on port 8085
//go run main.go -workbook=warehouse.xlsx -transport=sse -port=8085
//
// StreamableHTTP transport on port 9000
//go run main.go -workbook=warehouse.xlsx -transport=httpstream -port=9000

func main() {
	workbook := flag.String("workbook", "warehouse.xlsx", "Path to the xlsx workbook, one sheet per query type")
	transport := flag.String("transport", "stdio", "Transport method: stdio, sse, or httpstream")
	port := flag.String("port", "8085", "Port for HTTP-based transports (sse, httpstream)")
	flag.Parse()

	wb, err := dataserver.LoadWorkbook(*workbook)
	if err != nil {
		log.Fatalf("failed to load workbook: %v", err)
	}
	s := dataserver.NewServer(wb, "1.0.0")

	switch *transport {
	case "sse":
		log.Printf("Starting data MCP server with SSE transport on port %s", *port)
		if err := server.NewSSEServer(s).Start(":" + *port); err != nil {
			log.Fatalf("SSE server error: %v", err)
		}
	case "httpstream":
		log.Printf("Starting data MCP server with StreamableHTTP transport on port %s", *port)
		if err := server.NewStreamableHTTPServer(s).Start(":" + *port); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case "stdio":
		log.Println("Starting data MCP server with STDIO transport")
		if err := server.ServeStdio(s); err != nil {
			log.Fatalf("STDIO server error: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s. Use stdio, sse, or httpstream", *transport)
	}
}
