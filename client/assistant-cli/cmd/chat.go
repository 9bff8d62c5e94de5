package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	chatAction   string
	chatMode     string
	chatTurnID   string
	chatNoCache  bool
	chatRawJSON  bool
	chatSaveFile bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [query]",
	Short: "Start a turn and stream its events",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		chat(args[0])
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatAction, "action", "", "force a handler: chat, report, agent or mcp")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "llm_response_type: stream, report or invoke")
	chatCmd.Flags().StringVar(&chatTurnID, "turn-id", "", "turn id, generated by the server when empty")
	chatCmd.Flags().BoolVar(&chatNoCache, "no-cache", false, "disable the turn cache")
	chatCmd.Flags().BoolVar(&chatSaveFile, "save-file", true, "export report files")
	chatCmd.Flags().BoolVar(&chatRawJSON, "json", false, "print raw JSON events")
}

// closeTurnCancelled 是服务端在轮次被中断后使用的关闭码。
const closeTurnCancelled = 4000

type chatMessage struct {
	Type    string                 `json:"type,omitempty"`
	TurnID  string                 `json:"turn_id,omitempty"`
	Query   string                 `json:"query,omitempty"`
	Action  string                 `json:"action,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func chat(query string) {
	u := url.URL{Scheme: "ws", Host: serverAddr, Path: "/ws/assistant"}
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-ID", userID)
	}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	options := map[string]interface{}{"is_save_file": chatSaveFile}
	if chatMode != "" {
		options["llm_response_type"] = chatMode
	}
	if chatNoCache {
		options["is_cache_request"] = false
	}
	if err := c.WriteJSON(chatMessage{TurnID: chatTurnID, Query: query, Action: chatAction, Options: options}); err != nil {
		log.Fatal("write:", err)
	}

	// Ctrl-C 请求服务端中断轮次，之后继续读取直到连接关闭
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Fprintln(os.Stderr, "\ncancelling...")
		_ = c.WriteJSON(chatMessage{Type: "cancel"})
	}()

	p := &printer{raw: chatRawJSON}
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			p.flush()
			switch {
			case websocket.IsCloseError(err, closeTurnCancelled):
				fmt.Fprintln(os.Stderr, "turn cancelled")
			case !websocket.IsCloseError(err, websocket.CloseNormalClosure):
				log.Println("read:", err)
			}
			return
		}
		p.print(message)
	}
}

// event 是服务端推送事件中 CLI 关心的字段。
type event struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	File    *struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	} `json:"file"`
}

// printer 把连续的 chat 分片拼成一行输出，其他事件单独一行。
type printer struct {
	raw    bool
	inChat bool
}

func (p *printer) flush() {
	if p.inChat {
		fmt.Println()
		p.inChat = false
	}
}

func (p *printer) print(message []byte) {
	if p.raw {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, message, "", "  "); err != nil {
			fmt.Println(string(message))
			return
		}
		fmt.Println(pretty.String())
		return
	}

	var ev event
	if err := json.Unmarshal(message, &ev); err != nil {
		log.Printf("Error decoding event: %v. Raw message: %s", err, message)
		return
	}
	switch ev.Type {
	case "chat":
		p.inChat = true
		fmt.Print(ev.Message)
	case "log":
		// 内部日志只在 --json 下输出
	case "file":
		p.flush()
		if ev.File != nil {
			fmt.Printf("[file] %s %s\n", ev.File.Filename, ev.File.URL)
		}
	default:
		p.flush()
		fmt.Printf("[%s] %s %s", ev.Type, ev.Name, ev.Status)
		if ev.Message != "" {
			fmt.Printf(": %s", ev.Message)
		}
		fmt.Println()
	}
}
