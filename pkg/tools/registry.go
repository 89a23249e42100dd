package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"finance-rag-be/pkg/rag/ragerr"
)

// ComputeFunc receives arguments in the order declared by the tool's ParamSpec list.
type ComputeFunc func(args []float64) (string, error)

type Tool struct {
	Spec    ToolSpec
	Compute ComputeFunc
}

// Registry is an in-process Catalog.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

var _ Catalog = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewFinanceRegistry returns a registry holding the arithmetic and financial ratio tools.
func NewFinanceRegistry() *Registry {
	r := NewRegistry()
	for _, t := range FinanceTools() {
		// names are unique by construction
		_ = r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) error {
	if t.Spec.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Compute == nil {
		return fmt.Errorf("tool %s has no compute function", t.Spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Spec.Name)
	}
	r.tools[t.Spec.Name] = t
	r.order = append(r.order, t.Spec.Name)
	return nil
}

func (r *Registry) List(ctx context.Context) ([]ToolSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs, nil
}

func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name), nil
	}

	values := make([]float64, len(t.Spec.Parameters))
	for i, p := range t.Spec.Parameters {
		raw, present := args[p.Name]
		if !present {
			return fmt.Sprintf("Error: missing argument %q for %s", p.Name, name), nil
		}
		v, err := toFloat(raw)
		if err != nil {
			return fmt.Sprintf("Error: argument %q for %s is not a number: %v", p.Name, name, err), nil
		}
		values[i] = v
	}

	out, err := t.Compute(values)
	if err != nil {
		var guard *ragerr.ToolExecutionError
		if errors.As(err, &guard) {
			return guard.Error(), nil
		}
		return fmt.Sprintf("Error in %s: %v", name, err), nil
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		// models sometimes quote numbers or add thousands separators
		return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
