package manager

import (
	"context"
	"strings"
	"time"

	"captiond/pkg/types"
)

// Generate runs one captioning inference. It holds the model lock for the
// whole call, loading the model first when needed, so concurrent callers are
// served strictly one at a time. Cancellation of ctx is ignored: a started
// generation always runs to completion.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrManagerClosed
	}

	if m.handle == nil || !m.handle.Alive() {
		m.gen.set(types.GenLoadingModel, "Loading model...", 5)
	}
	if err := m.ensureLocked(ctx); err != nil {
		m.gen.set(types.GenError, err.Error(), 0)
		generationsTotal.WithLabelValues("load_error").Inc()
		return "", err
	}

	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	m.touch()
	m.setState(StateGenerating)
	m.gen.set(types.GenGenerating, "Generating caption...", generationProgress(0, maxTokens))
	m.publish(EventGenerateStart, map[string]any{"max_tokens": maxTokens})
	m.log.Debug().Str("event", EventGenerateStart).Int("image_bytes", len(req.Image)).Int("max_tokens", maxTokens).Msg("generate")

	start := time.Now()
	var sb strings.Builder
	tokens := 0
	res, err := m.handle.Generate(ctx, req, func(frag string) error {
		tokens++
		sb.WriteString(frag)
		m.gen.set(types.GenGenerating, "Generating caption...", generationProgress(tokens, maxTokens))
		return nil
	})
	dur := time.Since(start)
	m.setState(StateReady)
	generationDuration.Observe(dur.Seconds())

	if err != nil {
		ge := &GenerationError{Err: err}
		m.gen.set(types.GenError, ge.Error(), 0)
		generationsTotal.WithLabelValues("error").Inc()
		m.publish(EventGenerateError, map[string]any{"error": err.Error(), "tokens": tokens})
		m.log.Error().Str("event", EventGenerateError).Err(err).Int("tokens", tokens).Dur("dur", dur).Msg("generation failed")
		return "", ge
	}

	text := res.Content
	if text == "" {
		text = sb.String()
	}
	m.touch()
	m.gen.set(types.GenCompleted, "Caption generated", 100)
	generationsTotal.WithLabelValues("ok").Inc()
	m.publish(EventGenerateDone, map[string]any{"tokens": tokens, "duration_ms": dur.Milliseconds(), "finish_reason": res.FinishReason})
	m.log.Info().Str("event", EventGenerateDone).Int("tokens", tokens).Dur("dur", dur).Msg("caption generated")
	return text, nil
}

// generationProgress maps streamed tokens onto the 20..95 band; the
// remaining range is reserved for load (below) and completion (100).
func generationProgress(tokens, maxTokens int) int {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	p := 20 + 75*tokens/maxTokens
	if p > 95 {
		p = 95
	}
	return p
}
