package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"resumate/internal/auth"
)

func main() {
	var (
		hashPassword = flag.String("hash-password", "", "生成 API 口令的 bcrypt 哈希后退出")
		server       = flag.String("server", "http://localhost:8080", "API 服务地址")
		password     = flag.String("password", "", "API 口令（对应 X-API-Password）")
		file         = flag.String("file", "", "待解析的文档路径（必填）")
	)
	flag.Parse()

	if *hashPassword != "" {
		hashed, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(hashed)
		return
	}

	if *file == "" {
		log.Fatal("missing required flag: --file")
	}

	jobID, wsToken, err := submit(*server, *password, *file)
	if err != nil {
		log.Fatalf("submit document: %v", err)
	}
	fmt.Printf("job submitted: %s\n", jobID)

	if err := stream(*server, jobID, wsToken); err != nil {
		log.Fatalf("stream progress: %v", err)
	}
}

type submitResponse struct {
	JobID   string `json:"jobId"`
	WsToken string `json:"wsToken"`
	Error   string `json:"error"`
}

func submit(server, password, path string) (jobID, wsToken string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("close form writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/v1/jobs", &body)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if password != "" {
		req.Header.Set("X-API-Password", password)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", "", fmt.Errorf("server rejected upload (status %d): %s", resp.StatusCode, parsed.Error)
	}
	return parsed.JobID, parsed.WsToken, nil
}

// stream 订阅作业进度并打印事件，收到 complete 或 error 后退出。
func stream(server, jobID, wsToken string) error {
	u, err := url.Parse(server)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/v1/ws", scheme, u.Host)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	subscribe := map[string]string{"type": "subscribe", "jobId": jobID, "token": wsToken}
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event struct {
			Type  string `json:"type"`
			Stage string `json:"stage"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		fmt.Println(string(message))

		if event.Stage == "complete" || event.Stage == "error" {
			return nil
		}
	}
}
