package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"captiond/internal/caption"
	"captiond/internal/manager"
	"captiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req manager.GenerateRequest) (string, error)
	Unload() bool
	Status() types.StatusResponse
	Health() types.HealthResponse
}

// NewMux builds the router for the captioning API.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(corsHandler())
	}
	r.Use(MetricsMiddleware)

	r.Get("/health", healthHandler(svc))
	r.Get("/status", statusHandler(svc))
	r.Post("/caption", captionHandler(svc))
	r.Post("/unload", unloadHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsHandler() func(http.Handler) http.Handler {
	origins := corsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := corsAllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := corsAllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}

// healthHandler godoc
// @Summary      Model file health
// @Description  Reports whether the model and projector files exist and whether the model is resident.
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Failure      503  {object}  types.HealthResponse
// @Router       /health [get]
func healthHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := svc.Health()
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// statusHandler godoc
// @Summary      Manager status
// @Description  Lifecycle state, idle time, counters and the current generation status.
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// unloadHandler godoc
// @Summary      Unload the model
// @Description  Releases the model immediately. Waits for an in-flight generation to finish.
// @Tags         model
// @Produce      json
// @Success      200  {object}  types.UnloadResponse
// @Router       /unload [post]
func unloadHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		was := svc.Unload()
		if e := requestEvent(r, requestLogLevel(r), LevelInfo); e != nil {
			e.Bool("was_loaded", was).Msg("unload")
		}
		writeJSON(w, http.StatusOK, types.UnloadResponse{Success: true, WasLoaded: was})
	}
}

// captionHandler godoc
// @Summary      Caption an image
// @Description  Loads the model on demand and generates a caption for a base64 encoded image.
// @Tags         model
// @Accept       json
// @Produce      json
// @Param        request  body      types.CaptionRequest  true  "Caption request"
// @Success      200      {object}  types.CaptionResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /caption [post]
func captionHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		fail := func(status int, msg string, err error) {
			writeJSONError(w, status, msg)
			if e := requestEvent(r, lvl, LevelInfo); e != nil {
				e.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("caption end")
			}
		}
		// every malformed request is a 400; the reason only feeds the counter
		reject := func(reason, msg string, err error) {
			IncrementRejected(reason)
			fail(http.StatusBadRequest, msg, err)
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			reject("content_type", "Content-Type must be application/json", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.CaptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies also land here; report 400 without size details.
			reject("bad_request", "invalid JSON body", err)
			return
		}
		if strings.TrimSpace(req.Image) == "" {
			reject("bad_request", "image is required", nil)
			return
		}
		sp, err := caption.ValidateSampling(req.Temperature, req.TopP, req.MaxTokens, req.TopK, req.Seed, req.RepeatPenalty)
		if err != nil {
			reject("bad_request", err.Error(), err)
			return
		}
		img, err := caption.DecodeImage(req.Image, maxImageSide)
		if err != nil {
			reject("image", err.Error(), err)
			return
		}

		opts := textOptions(req)
		if e := requestEvent(r, lvl, LevelInfo); e != nil {
			e.Int("image_bytes", len(img)).Int("max_tokens", sp.MaxTokens).Msg("caption start")
		}
		raw, err := svc.Generate(r.Context(), manager.GenerateRequest{
			Image:  img,
			Prompt: caption.BuildPrompt(req.Prompt, opts),
			Params: manager.SamplingParams{
				Temperature:   float32(sp.Temperature),
				TopP:          float32(sp.TopP),
				TopK:          sp.TopK,
				MaxTokens:     sp.MaxTokens,
				Seed:          int(sp.Seed),
				RepeatPenalty: float32(sp.RepeatPenalty),
			},
		})
		if err != nil {
			fail(statusFor(err), err.Error(), err)
			return
		}
		if e := requestEvent(r, lvl, LevelDebug); e != nil {
			e.Str("raw", raw).Msg("caption raw output")
		}

		dur := time.Since(start)
		writeJSON(w, http.StatusOK, types.CaptionResponse{
			Success:    true,
			Caption:    caption.CleanCaption(raw, opts),
			DurationMS: dur.Milliseconds(),
		})
		if e := requestEvent(r, lvl, LevelInfo); e != nil {
			e.Int("status", http.StatusOK).Dur("dur", dur).Msg("caption end")
		}
	}
}

func textOptions(req types.CaptionRequest) caption.TextOptions {
	opts := caption.DefaultTextOptions()
	opts.PromptPrefix = req.PromptPrefix
	opts.PromptSuffix = req.PromptSuffix
	opts.Prepend = req.Prepend
	opts.Append = req.Append
	opts.SingleLine = req.SingleLine
	opts.MaxLength = req.MaxLength
	if req.StripPrefixes != nil {
		opts.StripPrefixes = *req.StripPrefixes
	}
	return opts
}
