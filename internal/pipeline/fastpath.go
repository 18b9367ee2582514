package pipeline

import (
	"context"
	"fmt"

	"github.com/roach88/vizgen/internal/ir"
	"github.com/roach88/vizgen/internal/pattern"
	"github.com/roach88/vizgen/internal/prompts"
	"github.com/roach88/vizgen/internal/render"
	"github.com/roach88/vizgen/internal/scene"
	"github.com/roach88/vizgen/internal/sorting"
	"github.com/roach88/vizgen/internal/validate"
)

// fastPath runs the domain's single specialized stage and renders its
// fixed scene template. The source is deterministic, so a render retry
// re-renders the same text.
func (c *Coordinator) fastPath(ctx context.Context, r *run, domain string) error {
	var (
		src string
		err error
	)
	switch domain {
	case pattern.DomainSorting:
		src, err = c.sortingScene(ctx, r)
	case pattern.DomainCNN:
		src, err = c.cnnScene(ctx, r)
	case pattern.DomainTransformer:
		src, err = c.attentionScene(ctx, r)
	default:
		return fmt.Errorf("pipeline: no fast path for domain %q", domain)
	}
	if err != nil {
		return err
	}
	c.keepSource(r, "scene", src)
	return c.renderWith(ctx, r, func(context.Context, int, *render.Failure) (string, error) {
		return src, nil
	})
}

// sortingScene generates and validates a trace. When the request names a
// short array, a locally expanded trace is offered to the generator as
// reference.
func (c *Coordinator) sortingScene(ctx context.Context, r *run) (string, error) {
	data := prompts.Data{Text: r.text}
	if arr, ok := sorting.ArrayFromText(r.text); ok && len(arr) <= sorting.MaxReferenceItems {
		ref, err := ir.FromValue(sorting.Expand(sorting.AlgorithmFromText(r.text), arr))
		if err != nil {
			return "", err
		}
		data.Document = ref.Indent()
	}

	doc, err := c.runStage(ctx, r, stageSpec{
		stage: prompts.SortingTrace,
		kind:  ir.KindSortingTrace,
		data:  data,
		model: c.cfg.Model,
	})
	if err != nil {
		return "", err
	}
	doc.SetDomain(pattern.DomainSorting)
	r.resp.SortingTrace = doc

	trace, err := decodeAccepted[ir.SortingTrace](string(prompts.SortingTrace), doc)
	if err != nil {
		return "", err
	}
	seqDoc, err := sorting.ToSequenceIR(trace)
	if err != nil {
		return "", err
	}
	if errs := validate.Validate(seqDoc); len(errs) > 0 {
		return "", &StageError{Stage: "sequence", Attempts: 1, Errors: errs}
	}
	r.resp.IR = seqDoc

	seq, err := ir.Decode[ir.SequenceIR](seqDoc)
	if err != nil {
		return "", fmt.Errorf("pipeline: decode sequence: %w", err)
	}
	return scene.Sorting(seq)
}

func (c *Coordinator) cnnScene(ctx context.Context, r *run) (string, error) {
	doc, err := c.runStage(ctx, r, stageSpec{
		stage: prompts.CNNParam,
		kind:  ir.KindCNNParam,
		data:  prompts.Data{Text: r.text},
		model: c.cfg.Model,
	})
	if err != nil {
		return "", err
	}
	r.resp.CNNIR = doc

	cnn, err := decodeAccepted[ir.CNNDocument](string(prompts.CNNParam), doc)
	if err != nil {
		return "", err
	}
	return scene.CNN(cnn.IR.Params)
}

func (c *Coordinator) attentionScene(ctx context.Context, r *run) (string, error) {
	doc, err := c.runStage(ctx, r, stageSpec{
		stage: prompts.SeqAttention,
		kind:  ir.KindSeqAttention,
		data:  prompts.Data{Text: r.text},
		model: c.cfg.Model,
		prepare: func(d ir.Document) {
			if d.Discriminator() == "" {
				d["pattern_type"] = string(ir.KindSeqAttention)
			}
		},
	})
	if err != nil {
		return "", err
	}
	doc.SetDomain(pattern.DomainTransformer)
	r.resp.AttentionIR = doc

	attn, err := decodeAccepted[ir.AttentionIR](string(prompts.SeqAttention), doc)
	if err != nil {
		return "", err
	}
	return scene.Attention(attn)
}

// decodeAccepted decodes a document the validators accepted. A value the
// typed view cannot hold still ends the request as a StageError, so the
// caller gets a response.
func decodeAccepted[T any](stage string, doc ir.Document) (T, error) {
	v, err := ir.Decode[T](doc)
	if err != nil {
		return v, &StageError{
			Stage:    stage,
			Attempts: 1,
			Errors:   validate.Errors{{Field: "$", Message: err.Error(), Code: validate.ErrTypeMismatch}},
		}
	}
	return v, nil
}
