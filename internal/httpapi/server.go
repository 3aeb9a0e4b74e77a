package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"translatord/internal/engine"
	"translatord/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Translate(ctx context.Context, text string) (string, error)
	Ready() bool
	Device() string
	Languages() (source, target string)
	Status() types.StatusResponse
}

// Client-facing validation messages.
const (
	msgInvalidJSON  = "Invalid JSON"
	msgMissingText  = "send JSON with `text` field"
	msgInvalidText  = "`text` must be a non-empty string"
	msgTooLarge     = "request body too large"
	msgInternal     = "translation failed"
	msgNotAvailable = "translation service unavailable"
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}

	r.Get("/", serveIndex(svc))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Device: svc.Device()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/translate", translateHandler(svc))

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// decodeText applies the /translate validation rules in order: well-formed
// UTF-8 JSON, an object with a text key, a non-blank string value. Content-Type
// is not checked.
func decodeText(body []byte) (text string, status int, msg, details string) {
	// encoding/json would silently turn invalid bytes into U+FFFD.
	if !utf8.Valid(body) {
		return "", http.StatusBadRequest, msgInvalidJSON, "request body is not valid UTF-8"
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", http.StatusBadRequest, msgInvalidJSON, err.Error()
	}
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) == 0 {
		return "", http.StatusBadRequest, msgMissingText, ""
	}
	v, ok := obj["text"]
	if !ok {
		return "", http.StatusBadRequest, msgMissingText, ""
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", http.StatusBadRequest, msgInvalidText, ""
	}
	return s, http.StatusOK, "", ""
}

// translateHandler godoc
// @Summary      Translate text
// @Description  Translates the given text from the source to the target language.
// @Tags         translate
// @Accept       json
// @Produce      json
// @Param        request  body      types.TranslateRequest  true  "text to translate"
// @Success      200      {object}  types.TranslateResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /translate [post]
func translateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)

		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
				logTranslateEnd(r, lvl, http.StatusRequestEntityTooLarge, start, err)
				return
			}
			writeJSONErrorDetails(w, http.StatusBadRequest, msgInvalidJSON, err.Error())
			logTranslateEnd(r, lvl, http.StatusBadRequest, start, err)
			return
		}
		text, status, msg, details := decodeText(body)
		if status != http.StatusOK {
			writeJSONErrorDetails(w, status, msg, details)
			logTranslateEnd(r, lvl, status, start, nil)
			return
		}
		if lvl >= LevelDebug {
			ev := zlog.Debug().Int("chars", len([]rune(text)))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				ev = ev.Str("request_id", rid)
			}
			ev.Msg("translate start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if inferTimeout > 0 {
			var cancelT context.CancelFunc
			ctx, cancelT = context.WithTimeout(ctx, time.Duration(inferTimeout)*time.Second)
			defer cancelT()
		}
		out, err := svc.Translate(ctx, text)
		if err != nil {
			// Client gone or shutting down: nobody to answer.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				logTranslateEnd(r, lvl, 499, start, err)
				return
			}
			code := statusFor(err)
			switch code {
			case http.StatusTooManyRequests:
				IncrementBackpressure("queue")
				writeJSONError(w, code, err.Error())
			case http.StatusServiceUnavailable:
				writeJSONError(w, code, msgNotAvailable)
			case http.StatusGatewayTimeout:
				writeJSONError(w, code, "translation timed out")
			default:
				var he HTTPError
				if errors.As(err, &he) {
					writeJSONError(w, code, he.Error())
				} else {
					writeJSONError(w, code, msgInternal)
				}
			}
			logTranslateEnd(r, lvl, code, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.TranslateResponse{Input: text, Translation: out})
		logTranslateEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case engine.IsTooBusy(err):
		return http.StatusTooManyRequests
	case engine.IsNotReady(err), engine.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}
