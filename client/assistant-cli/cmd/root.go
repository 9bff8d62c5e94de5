package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "assistant-cli",
	Short: "A CLI client to interact with the AI assistant service",
	Long:  `A command-line interface for chatting with the assistant, cancelling turns and inspecting turn records.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:8080", "assistant service address (host:port)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id sent as X-User-ID")
}

func apiURL(path string) string {
	return "http://" + strings.TrimSuffix(serverAddr, "/") + "/api/v1/assistant" + path
}

// doRequest 发送请求并返回响应体，非 2xx 状态视为错误。
func doRequest(method, url string) ([]byte, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
