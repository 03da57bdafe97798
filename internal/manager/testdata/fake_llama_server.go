package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// A stand-in for llama.cpp's llama-server used by the subprocess adapter tests.
// Behavior switches come from the environment:
//
//	FAKE_LLAMA_EXIT=1        exit with status 1 before serving
//	FAKE_LLAMA_WARMUP_MS=n   answer /health with 503 for n milliseconds
//	FAKE_LLAMA_GEN_STATUS=n  answer /v1/chat/completions with status n
func main() {
	var model, mmproj, host, port string
	var ngl, ctx, threads int
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&mmproj, "mmproj", "", "projector path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.IntVar(&ngl, "ngl", 0, "gpu layers")
	flag.IntVar(&ctx, "c", 0, "context size")
	flag.IntVar(&threads, "t", 0, "threads")
	flag.Parse()

	if os.Getenv("FAKE_LLAMA_EXIT") == "1" {
		fmt.Fprintln(os.Stderr, "error: failed to load model '"+model+"'")
		os.Exit(1)
	}
	if model == "" || mmproj == "" {
		fmt.Fprintln(os.Stderr, "error: -m and --mmproj are required")
		os.Exit(2)
	}
	warmup, _ := strconv.Atoi(os.Getenv("FAKE_LLAMA_WARMUP_MS"))
	readyAt := time.Now().Add(time.Duration(warmup) * time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().Before(readyAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if s, _ := strconv.Atoi(os.Getenv("FAKE_LLAMA_GEN_STATUS")); s != 0 {
			http.Error(w, "forced failure", s)
			return
		}
		var req struct {
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var hasImage, hasText bool
		for _, c := range req.Messages[0].Content {
			if c.Type == "image_url" && c.ImageURL != nil && strings.HasPrefix(c.ImageURL.URL, "data:image/jpeg;base64,") {
				hasImage = true
			}
			if c.Type == "text" && c.Text != "" {
				hasText = true
			}
		}
		if !hasImage || !hasText {
			http.Error(w, "image and text parts required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		for _, tok := range []string{"A ", "small ", "test ", "image."} {
			b, _ := json.Marshal(map[string]any{
				"object":  "chat.completion.chunk",
				"choices": []any{map[string]any{"delta": map[string]string{"content": tok}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
			if fl != nil {
				fl.Flush()
			}
		}
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for SIGTERM then shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(c)
}
