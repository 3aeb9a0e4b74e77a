package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ServerOptions configure the inference server backend.
type ServerOptions struct {
	BaseURL        string
	Model          string
	APIKey         string
	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// serverAdapter implements Seq2SeqAdapter against an inference server that
// speaks the KServe v2 (Triton) protocol. The server owns the weights, the
// adapter merge and device placement.
type serverAdapter struct {
	baseURL string
	model   string
	http    *resty.Client
}

// NewServerAdapter constructs a server-backed adapter.
func NewServerAdapter(o ServerOptions) Seq2SeqAdapter {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   o.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := resty.New().SetTransport(tr).SetTimeout(o.Timeout)
	if o.APIKey != "" {
		c.SetAuthToken(o.APIKey)
	}
	return &serverAdapter{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		model:   o.Model,
		http:    c,
	}
}

func (a *serverAdapter) Name() string { return "server" }

func (a *serverAdapter) url(format string, args ...any) string {
	return a.baseURL + fmt.Sprintf(format, args...)
}

// Ping checks server liveness and readiness.
func (a *serverAdapter) Ping(ctx context.Context) error {
	r, err := a.http.R().SetContext(ctx).Get(a.url("/v2/health/ready"))
	if err != nil {
		return ErrDependencyUnavailable("inference server unreachable: " + err.Error())
	}
	if r.IsError() {
		return ErrDependencyUnavailable("inference server not ready: " + r.Status())
	}
	return nil
}

// repositoryLoadRequest asks the server to load the base model with the adapter merged.
type repositoryLoadRequest struct {
	Parameters map[string]any `json:"parameters"`
}

func (a *serverAdapter) Load(ctx context.Context, spec LoadSpec) (Session, error) {
	if a.baseURL == "" || a.model == "" {
		return nil, errors.New("inference server url and model name are required")
	}
	if err := a.Ping(ctx); err != nil {
		return nil, err
	}
	base := spec.BaseModel
	if spec.BaseModelPath != "" {
		base = spec.BaseModelPath
	}
	body := repositoryLoadRequest{Parameters: map[string]any{
		"base_model":    base,
		"adapter":       spec.Artifacts.AdapterDir,
		"adapter_type":  spec.Artifacts.Adapter.PeftType,
		"merge_adapter": spec.Merge,
		"device":        spec.Device,
		"eval":          true,
		"src_lang":      spec.SourceLang,
		"tgt_lang":      spec.TargetLang,
	}}
	r, err := a.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.url("/v2/repository/models/%s/load", a.model))
	if err != nil {
		return nil, ErrDependencyUnavailable("inference server load: " + err.Error())
	}
	if r.IsError() {
		return nil, fmt.Errorf("inference server load %s: %s; body: %s", a.model, r.Status(), r.String())
	}
	r, err = a.http.R().SetContext(ctx).Get(a.url("/v2/models/%s/ready", a.model))
	if err != nil {
		return nil, ErrDependencyUnavailable("inference server model ready: " + err.Error())
	}
	if r.IsError() {
		return nil, fmt.Errorf("model %s not ready after load: %s", a.model, r.Status())
	}
	return &serverSession{adapter: a}, nil
}

type serverSession struct {
	adapter *serverAdapter
}

type inferTensor struct {
	Name     string  `json:"name"`
	Shape    []int   `json:"shape"`
	Datatype string  `json:"datatype"`
	Data     []int64 `json:"data"`
}

type inferOutputSpec struct {
	Name string `json:"name"`
}

type inferRequest struct {
	ID         string            `json:"id"`
	Parameters map[string]any    `json:"parameters,omitempty"`
	Inputs     []inferTensor     `json:"inputs"`
	Outputs    []inferOutputSpec `json:"outputs"`
}

type inferResponse struct {
	ID      string        `json:"id"`
	Model   string        `json:"model_name"`
	Outputs []inferTensor `json:"outputs"`
}

type serverError struct {
	Error string `json:"error"`
}

func int64s(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func (s *serverSession) Generate(ctx context.Context, enc Encoding, p GenerateParams) (Generation, error) {
	params := map[string]any{
		"max_length":     p.MaxLength,
		"num_beams":      p.NumBeams,
		"early_stopping": p.EarlyStopping,
	}
	if p.ForcedBOSTokenID >= 0 {
		params["forced_bos_token_id"] = p.ForcedBOSTokenID
	}
	n := enc.Len()
	req := inferRequest{
		ID:         uuid.NewString(),
		Parameters: params,
		Inputs: []inferTensor{
			{Name: "input_ids", Shape: []int{1, n}, Datatype: "INT64", Data: int64s(enc.InputIDs)},
			{Name: "attention_mask", Shape: []int{1, n}, Datatype: "INT64", Data: int64s(enc.AttentionMask)},
		},
		Outputs: []inferOutputSpec{{Name: "output_ids"}},
	}
	var resp inferResponse
	var apiErr serverError
	r, err := s.adapter.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&resp).
		SetError(&apiErr).
		Post(s.adapter.url("/v2/models/%s/infer", s.adapter.model))
	if err != nil {
		if ctx.Err() != nil {
			return Generation{}, ctx.Err()
		}
		return Generation{}, ErrDependencyUnavailable("inference server: " + err.Error())
	}
	if r.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = r.String()
		}
		if r.StatusCode() == http.StatusServiceUnavailable {
			return Generation{}, ErrDependencyUnavailable("inference server unavailable: " + msg)
		}
		return Generation{}, fmt.Errorf("inference server %s: %s", r.Status(), msg)
	}
	for _, out := range resp.Outputs {
		if out.Name != "output_ids" {
			continue
		}
		ids := make([]int, len(out.Data))
		for i, v := range out.Data {
			ids[i] = int(v)
		}
		return Generation{TokenIDs: ids}, nil
	}
	return Generation{}, errors.New("inference server response has no output_ids")
}

func (s *serverSession) Close() error {
	a := s.adapter
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := a.http.R().SetContext(ctx).Post(a.url("/v2/repository/models/%s/unload", a.model))
	if err != nil {
		return err
	}
	if r.IsError() {
		return fmt.Errorf("inference server unload %s: %s", a.model, r.Status())
	}
	return nil
}
