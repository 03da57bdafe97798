package manager

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// openAIChatRequest is the payload for llama-server's /v1/chat/completions.
type openAIChatRequest struct {
	Messages      []chatMessage `json:"messages"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Temperature   float32       `json:"temperature"`
	TopP          float32       `json:"top_p,omitempty"`
	TopK          int           `json:"top_k,omitempty"`
	Stop          []string      `json:"stop,omitempty"`
	Seed          int           `json:"seed,omitempty"`
	Stream        bool          `json:"stream"`
	RepeatPenalty float32       `json:"repeat_penalty,omitempty"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// openAIStreamChoiceDelta is a minimal subset of OpenAI streaming response.
type openAIStreamChoiceDelta struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string                    `json:"object"`
	Choices []openAIStreamChoiceDelta `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// buildChatRequest turns a captioning request into a single user message
// carrying the image as a JPEG data URL followed by the text prompt.
func buildChatRequest(req GenerateRequest) openAIChatRequest {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Image)
	p := req.Params
	return openAIChatRequest{
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
				{Type: "text", Text: req.Prompt},
			},
		}},
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		Stop:          p.Stop,
		Seed:          p.Seed,
		Stream:        true,
		RepeatPenalty: p.RepeatPenalty,
	}
}

// readChatStream consumes an SSE stream of chat completion chunks, invoking
// onToken per content fragment. Lines that are not data events are ignored.
func readChatStream(body io.Reader, onToken func(string) error) (FinalResult, error) {
	r := bufio.NewReader(body)
	var final FinalResult
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var msg openAIStreamResponse
			if e := json.Unmarshal([]byte(data), &msg); e == nil {
				if len(msg.Choices) > 0 {
					if frag := msg.Choices[0].Delta.Content; frag != "" {
						sb.WriteString(frag)
						if cbErr := onToken(frag); cbErr != nil {
							return final, cbErr
						}
					}
					if fr := msg.Choices[0].FinishReason; fr != "" {
						final.FinishReason = fr
					}
				}
				if msg.Usage != nil {
					final.Usage = Usage{
						PromptTokens:     msg.Usage.PromptTokens,
						CompletionTokens: msg.Usage.CompletionTokens,
						TotalTokens:      msg.Usage.TotalTokens,
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return final, err
		}
	}
	final.Content = sb.String()
	return final, nil
}
