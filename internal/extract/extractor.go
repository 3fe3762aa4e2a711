package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recipebox/internal/recipe"
)

// Modality is the kind of source an Input carries.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityText  Modality = "text"
)

// ErrEmptyInput is returned for an input with no image bytes or no text.
var ErrEmptyInput = errors.New("empty extraction input")

// Input is one source to extract a recipe from: an image or a transcript.
type Input struct {
	Modality Modality
	MIMEType string
	Data     []byte
	Text     string
}

// ImageInput builds an image Input.
func ImageInput(mimeType string, data []byte) Input {
	return Input{Modality: ModalityImage, MIMEType: mimeType, Data: data}
}

// TextInput builds a text Input.
func TextInput(text string) Input {
	return Input{Modality: ModalityText, Text: text}
}

func (in Input) validate() error {
	switch in.Modality {
	case ModalityImage:
		if len(in.Data) == 0 {
			return ErrEmptyInput
		}
	case ModalityText:
		if strings.TrimSpace(in.Text) == "" {
			return ErrEmptyInput
		}
	default:
		return fmt.Errorf("unknown modality %q", in.Modality)
	}
	return nil
}

// ContentHash identifies an input by its modality, MIME type and payload.
func ContentHash(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Modality))
	h.Write([]byte{'|'})
	h.Write([]byte(in.MIMEType))
	h.Write([]byte{'|'})
	if in.Modality == ModalityImage {
		h.Write(in.Data)
	} else {
		h.Write([]byte(in.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Model is a generative model that answers a prompt with raw text.
type Model interface {
	GenerateFromImage(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
	GenerateFromText(ctx context.Context, prompt, text string) (string, error)
}

// Cache stores validated candidates by content hash. Get returns nil, nil on
// a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Extractor turns images and transcripts into recipe candidates.
type Extractor struct {
	model       Model
	cache       Cache
	concurrency int
	logger      *zap.Logger
}

// NewExtractor creates an Extractor. cache may be nil. A concurrency of zero
// or less runs every input of a batch at once.
func NewExtractor(model Model, cache Cache, concurrency int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		model:       model,
		cache:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Extract runs one input through the model and validates the result.
func (e *Extractor) Extract(ctx context.Context, in Input) (recipe.Candidate, error) {
	if err := in.validate(); err != nil {
		return recipe.Candidate{}, err
	}

	key := ContentHash(in)
	log := e.logger.With(
		zap.String("modality", string(in.Modality)),
		zap.String("content_hash", key[:16]),
	)

	if c, ok := e.lookup(ctx, key, log); ok {
		log.Debug("extraction cache hit")
		return c, nil
	}

	start := time.Now()
	var raw string
	var err error
	if in.Modality == ModalityImage {
		log.Debug("calling model", zap.String("mime_type", in.MIMEType), zap.Int("bytes", len(in.Data)))
		raw, err = e.model.GenerateFromImage(ctx, ImagePrompt, in.MIMEType, in.Data)
	} else {
		log.Debug("calling model", zap.Int("chars", len(in.Text)))
		raw, err = e.model.GenerateFromText(ctx, TextPrompt, in.Text)
	}
	if err != nil {
		return recipe.Candidate{}, fmt.Errorf("model call failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return recipe.Candidate{}, ErrEmptyResponse
	}

	if in.Modality == ModalityImage {
		raw = StripFence(raw)
	}

	c, err := Decode(raw)
	if err != nil {
		log.Warn("model output rejected", zap.Error(err))
		return recipe.Candidate{}, err
	}

	log.Info("recipe extracted",
		zap.String("name", c.Name),
		zap.Int("ingredients", len(c.Ingredients)),
		zap.Int("instructions", len(c.Instructions)),
		zap.Duration("elapsed", time.Since(start)),
	)

	e.remember(ctx, key, c, log)
	return c, nil
}

// ExtractAll extracts every input concurrently and merges the results in
// input order. Any failure fails the whole batch.
func (e *Extractor) ExtractAll(ctx context.Context, inputs []Input) (recipe.Candidate, error) {
	if len(inputs) == 0 {
		return recipe.Candidate{}, recipe.ErrEmptyBatch
	}

	results := make([]recipe.Candidate, len(inputs))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, in := range inputs {
		g.Go(func() error {
			c, err := e.Extract(ctx, in)
			if err != nil {
				return fmt.Errorf("input %d: %w", i+1, err)
			}
			results[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return recipe.Candidate{}, err
	}

	return recipe.Merge(results)
}

func (e *Extractor) lookup(ctx context.Context, key string, log *zap.Logger) (recipe.Candidate, bool) {
	if e.cache == nil {
		return recipe.Candidate{}, false
	}
	payload, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Warn("extraction cache read failed", zap.Error(err))
		return recipe.Candidate{}, false
	}
	if payload == nil {
		return recipe.Candidate{}, false
	}
	var c recipe.Candidate
	if err := json.Unmarshal(payload, &c); err != nil {
		log.Warn("discarding unreadable cache entry", zap.Error(err))
		return recipe.Candidate{}, false
	}
	return c, true
}

func (e *Extractor) remember(ctx context.Context, key string, c recipe.Candidate, log *zap.Logger) {
	if e.cache == nil {
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		log.Warn("encode cache entry", zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, key, payload); err != nil {
		log.Warn("extraction cache write failed", zap.Error(err))
	}
}
