// Package imagegen is the design-generation collaborator. It renders design
// prompts through the OpenAI Images API and fails open: any error yields a
// deterministic placeholder URL seeded by the prompt, never an error to the
// caller, so product creation can always proceed.
package imagegen

import (
	"context"
	"fmt"
	"net/url"

	"github.com/openai/openai-go"

	"github.com/brizzle/shopagent/logging"
)

// Options configure the generator.
type Options struct {
	Model  openai.ImageModel
	Logger logging.Logger
}

// Generator produces design image URLs from prompts.
type Generator struct {
	client *openai.Client
	model  openai.ImageModel
	logger logging.Logger
}

// New constructs a generator. A nil client disables API calls entirely and
// every prompt resolves to its placeholder.
func New(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{Model: openai.ImageModelDallE3, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, model: opts.Model, logger: opts.Logger}
}

// GenerateImage returns a URL for a rendered design. Never returns an error;
// failures degrade to PlaceholderURL(prompt).
func (g *Generator) GenerateImage(ctx context.Context, prompt string) string {
	if g.client == nil {
		g.logger.Warn("imagegen.unconfigured", "prompt", prompt)
		return PlaceholderURL(prompt)
	}

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:   g.model,
		Prompt:  prompt,
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize1024x1024,
		Quality: openai.ImageGenerateParamsQualityStandard,
	})
	if err != nil {
		g.logger.Error("imagegen.generate.error", "error", err.Error())
		return PlaceholderURL(prompt)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		g.logger.Error("imagegen.generate.empty", "prompt", prompt)
		return PlaceholderURL(prompt)
	}
	return resp.Data[0].URL
}

// PlaceholderURL returns the deterministic stand-in image for a prompt.
func PlaceholderURL(prompt string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/1024/1024", url.PathEscape(prompt))
}
