// Package playground runs frame inference over listing text for
// interactive front ends.
package playground

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/jalfmt"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/listing"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/report"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// InferFrames loads a listing, analyses every method and returns the frame
// table.
func InferFrames(listingYAML string) (string, error) {
	c, err := listing.Load(strings.NewReader(listingYAML), "listing")
	if err != nil {
		return "", errors.New(report.FormatErrors([]error{err}))
	}
	results, err := verifier.AnalyzeClass(context.Background(), c.Methods, options(c))
	if err != nil {
		return "", errors.New(report.FormatErrors([]error{err}))
	}
	var buf bytes.Buffer
	if err := report.WriteTable(&buf, results, report.TableOptions{}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PipelineResult contains the panels of the playground.
type PipelineResult struct {
	Listing  string   `json:"listing"`
	Effects  string   `json:"effects"`
	Frames   string   `json:"frames"`
	Report   string   `json:"report"`
	Warnings []string `json:"warnings"`
}

// InferFramesPipeline fills every panel. In strict mode the first failing
// method aborts the pipeline; otherwise failing methods are reported as
// warnings and the rest are still analysed.
func InferFramesPipeline(listingYAML string, strict bool) (*PipelineResult, error) {
	ctx := context.Background()
	result := &PipelineResult{
		Warnings: []string{},
	}

	c, err := listing.Load(strings.NewReader(listingYAML), "listing")
	if err != nil {
		return nil, errors.New(report.FormatErrors([]error{err}))
	}

	var listingBuf, effectsBuf strings.Builder
	for _, m := range c.Methods {
		code, err := jalfmt.Format(methodCode(m), jalfmt.Cfg{})
		if err != nil {
			return nil, fmt.Errorf("failed to format %s: %w", m, err)
		}
		fmt.Fprintf(&listingBuf, "# %s\n%s", m, code)

		var eb bytes.Buffer
		if err := report.WriteEffects(&eb, m); err != nil {
			return nil, err
		}
		effectsBuf.Write(eb.Bytes())
	}
	result.Listing = listingBuf.String()
	result.Effects = effectsBuf.String()

	opts := options(c)
	var (
		results []*verifier.Result
		failed  []error
	)
	for _, m := range c.Methods {
		r, err := verifier.Analyze(ctx, m, opts)
		if err != nil {
			err = fmt.Errorf("method %s: %w", m, err)
			if strict {
				return nil, errors.New(report.FormatErrors([]error{err}))
			}
			failed = append(failed, err)
			continue
		}
		results = append(results, r)
	}
	if len(failed) > 0 {
		result.Warnings = append(result.Warnings, report.FormatErrors(failed))
	}

	var frames, yamlBuf bytes.Buffer
	if err := report.WriteTable(&frames, results, report.TableOptions{}); err != nil {
		return nil, err
	}
	if err := report.WriteYAML(&yamlBuf, results); err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	result.Frames = frames.String()
	result.Report = yamlBuf.String()

	return result, nil
}

func options(c *listing.Class) verifier.Options {
	opts := verifier.DefaultOptions()
	opts.Logger = verifier.NopLogger()
	opts.KeepSnapshots = false
	opts.Hierarchy = listing.Hierarchy(nil, c)
	return opts
}

// methodCode renders a method body back into listing lines.
func methodCode(m *verifier.Method) string {
	labels := make(map[int][]string)
	for _, l := range m.Labels.Labels() {
		labels[l.Index] = append(labels[l.Index], l.Name)
	}
	var b strings.Builder
	for _, insn := range m.Instructions {
		for _, name := range labels[insn.Index] {
			b.WriteString(name + ":\n")
		}
		b.WriteString(insn.Mnemonic)
		for _, o := range insn.Operands {
			b.WriteString(" " + o)
		}
		b.WriteByte('\n')
	}
	for _, name := range labels[len(m.Instructions)] {
		b.WriteString(name + ":\n")
	}
	return b.String()
}
