package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/advisor-guard/internal/domain/ai"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 800
)

// Client implements ai.Client with the Messages API.
type Client struct {
	client sdk.Client
	Model  string
}

// NewClient disables SDK retries; the answering pipeline calls the model once.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	return &Client{client: sdk.NewClient(opts...), Model: model}
}

func (c *Client) Complete(ctx context.Context, r ai.Request) (*ai.Completion, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := r.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(r.User))},
		Temperature: sdk.Float(float64(r.Params.Temperature)),
	}
	if r.System != "" {
		params.System = []sdk.TextBlockParam{{Text: r.System}}
	}
	// TopP is not forwarded: newer Claude models refuse temperature and
	// top_p in the same request.
	if r.Params.TopK > 0 {
		params.TopK = sdk.Int(int64(r.Params.TopK))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return nil, eris.Wrapf(ai.ErrQuotaExceeded, "anthropic: %v", err)
		}
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return nil, eris.Wrap(ai.ErrEmptyCompletion, "anthropic")
	}
	return &ai.Completion{Text: b.String(), Model: string(msg.Model)}, nil
}
