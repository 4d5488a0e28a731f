package replicate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	replicatego "github.com/replicate/replicate-go"

	"github.com/digkill/InteriorAI/internal/apperr"
	"github.com/digkill/InteriorAI/internal/config"
)

const serviceName = "replicate"

type Status string

const (
	StatusStarting   Status = Status(replicatego.Starting)
	StatusProcessing Status = Status(replicatego.Processing)
	StatusSucceeded  Status = Status(replicatego.Succeeded)
	StatusFailed     Status = Status(replicatego.Failed)
	StatusCanceled   Status = Status(replicatego.Canceled)
)

func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

type Input struct {
	ImageURL          string
	Prompt            string
	NegativePrompt    string
	NumInferenceSteps int
	GuidanceScale     float64
	PromptStrength    float64
}

type Prediction struct {
	ID      string
	Status  Status
	Outputs []string
	Error   string
}

type Client struct {
	api          *replicatego.Client
	initErr      error
	model        string
	version      string
	pollInterval time.Duration
	log          *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	poll := cfg.ModelPollInterval
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}
	c := &Client{pollInterval: poll, log: log}
	// owner/model:version pins a version; a bare owner/model runs its latest.
	if model, version, ok := strings.Cut(cfg.ReplicateModelVersion, ":"); ok {
		c.model, c.version = model, version
	} else if strings.Contains(cfg.ReplicateModelVersion, "/") {
		c.model = cfg.ReplicateModelVersion
	} else {
		c.version = cfg.ReplicateModelVersion
	}

	opts := []replicatego.ClientOption{
		replicatego.WithToken(cfg.ReplicateAPIToken),
		// per-call deadlines come from the context
		replicatego.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if base := strings.TrimRight(cfg.ReplicateBaseURL, "/"); base != "" {
		opts = append(opts, replicatego.WithBaseURL(base+"/v1"))
	}
	if cfg.ReplicateAPIToken == "" {
		c.initErr = errors.New("REPLICATE_API_TOKEN is not set")
		return c
	}
	c.api, c.initErr = replicatego.NewClient(opts...)
	return c
}

// Run creates a prediction and polls it until it reaches a terminal state or
// ctx expires. Any failure, including a failed prediction, is an
// *apperr.ExternalError; the prediction is returned alongside when known.
func (c *Client) Run(ctx context.Context, in Input) (*Prediction, error) {
	if c.initErr != nil {
		return nil, apperr.External(serviceName, fmt.Errorf("client: %w", c.initErr))
	}

	raw, err := c.create(ctx, in)
	if err != nil {
		return nil, apperr.External(serviceName, fmt.Errorf("create prediction: %w", err))
	}
	if c.log != nil {
		c.log.Info("prediction created", "prediction_id", raw.ID, "status", raw.Status)
	}

	if !Status(raw.Status).terminal() {
		err := c.api.Wait(ctx, raw, replicatego.WithPollingInterval(c.pollInterval))
		if ctxErr := ctx.Err(); ctxErr != nil && (err != nil || !Status(raw.Status).terminal()) {
			c.cancel(raw.ID)
			err = ctxErr
		}
		if err != nil {
			pred, _ := toPrediction(raw)
			return pred, apperr.External(serviceName, fmt.Errorf("wait for prediction %s: %w", raw.ID, err))
		}
	}

	pred, err := toPrediction(raw)
	if err != nil {
		return pred, apperr.External(serviceName, err)
	}
	switch pred.Status {
	case StatusSucceeded:
		if len(pred.Outputs) == 0 {
			return pred, apperr.External(serviceName, fmt.Errorf("prediction %s returned no output", pred.ID))
		}
		return pred, nil
	default:
		msg := pred.Error
		if msg == "" {
			msg = "unknown error"
		}
		return pred, apperr.External(serviceName, fmt.Errorf("prediction %s %s: %s", pred.ID, pred.Status, msg))
	}
}

func (c *Client) create(ctx context.Context, in Input) (*replicatego.Prediction, error) {
	input := replicatego.PredictionInput{
		"image":           in.ImageURL,
		"prompt":          in.Prompt,
		"negative_prompt": in.NegativePrompt,
	}
	if in.NumInferenceSteps > 0 {
		input["num_inference_steps"] = in.NumInferenceSteps
	}
	if in.GuidanceScale > 0 {
		input["guidance_scale"] = in.GuidanceScale
	}
	if in.PromptStrength > 0 {
		input["prompt_strength"] = in.PromptStrength
	}

	var (
		pred *replicatego.Prediction
		err  error
	)
	if c.version != "" {
		pred, err = c.api.CreatePrediction(ctx, c.version, input, nil, false)
	} else {
		owner, name, _ := strings.Cut(c.model, "/")
		pred, err = c.api.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	}
	if err != nil {
		return nil, err
	}
	if pred == nil || pred.ID == "" {
		return nil, errors.New("empty prediction id in response")
	}
	return pred, nil
}

// cancel is best effort; a prediction that keeps running upstream only costs money.
func (c *Client) cancel(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.api.CancelPrediction(ctx, id); err != nil && c.log != nil {
		c.log.Warn("cancel prediction failed", "prediction_id", id, "err", err)
	}
}

func toPrediction(raw *replicatego.Prediction) (*Prediction, error) {
	pred := &Prediction{ID: raw.ID, Status: Status(raw.Status)}
	if raw.Error != nil {
		pred.Error = fmt.Sprint(raw.Error)
	}
	outputs, err := decodeOutput(raw.Output)
	if err != nil {
		return pred, fmt.Errorf("prediction %s: %w", raw.ID, err)
	}
	pred.Outputs = outputs
	return pred, nil
}

// decodeOutput accepts both a single URL and a list of URLs; models differ.
func decodeOutput(output any) ([]string, error) {
	switch v := output.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("decode prediction output: unexpected item %T", item)
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode prediction output: unexpected %T", output)
	}
}
