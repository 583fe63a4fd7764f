package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/validation"
)

// Labels are the pt-BR nouns used in notifications, e.g. {"membro", "membros"}.
type Labels struct {
	Singular string
	Plural   string
}

// Collection is the in-memory list of one entity for the current tenant.
// Mutations never touch the list directly: a successful mutation refreshes it
// from the backend, a failed one leaves it as it was.
type Collection[T any] struct {
	ws     *Workspace
	labels Labels
	list   func(ctx context.Context) ([]T, error)

	mu     sync.RWMutex
	items  []T
	loaded bool
}

// NewCollection builds a collection whose rows come from list.
func NewCollection[T any](ws *Workspace, labels Labels, list func(ctx context.Context) ([]T, error)) *Collection[T] {
	if ws == nil {
		panic("workspace is required")
	}
	if list == nil {
		panic("list func is required")
	}
	return &Collection[T]{ws: ws, labels: labels, list: list}
}

// Items returns a copy of the current rows.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Loaded reports whether a List call has succeeded at least once.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Refresh reloads the rows. On failure the previous rows are kept.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	scoped, err := c.scope(ctx)
	if err != nil {
		return err
	}

	items, err := c.list(scoped)
	if err != nil {
		c.ws.logger.Error("list failed", zap.String("collection", c.labels.Plural), zap.Error(err))
		c.ws.notifier.Error(Message(err, "Erro ao carregar "+c.labels.Plural))
		return err
	}

	c.mu.Lock()
	c.items = items
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Create runs fn and refreshes on success.
func (c *Collection[T]) Create(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	return c.mutateValue(ctx, "criar", "criado", fn)
}

// Update runs fn and refreshes on success.
func (c *Collection[T]) Update(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	return c.mutateValue(ctx, "atualizar", "atualizado", fn)
}

// Delete runs fn and refreshes on success.
func (c *Collection[T]) Delete(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.Do(ctx, title(c.labels.Singular)+" removido com sucesso", "Erro ao remover "+c.labels.Singular, fn)
}

// Do runs any other mutation (complete, bulk status, banner) with the same
// notify and refresh policy.
func (c *Collection[T]) Do(ctx context.Context, success, failure string, fn func(ctx context.Context) error) error {
	_, err := mutate(ctx, c, success, failure, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (c *Collection[T]) mutateValue(ctx context.Context, verb, participle string, fn func(ctx context.Context) (T, error)) (T, error) {
	success := fmt.Sprintf("%s %s com sucesso", title(c.labels.Singular), participle)
	failure := fmt.Sprintf("Erro ao %s %s", verb, c.labels.Singular)
	return mutate(ctx, c, success, failure, fn)
}

func mutate[T, R any](ctx context.Context, c *Collection[T], success, failure string, fn func(ctx context.Context) (R, error)) (R, error) {
	var zero R
	scoped, err := c.scope(ctx)
	if err != nil {
		return zero, err
	}

	out, err := fn(scoped)
	if err != nil {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			c.ws.logger.Error("mutation failed", zap.String("collection", c.labels.Plural), zap.Error(err))
		}
		c.ws.notifier.Error(Message(err, failure))
		return zero, err
	}

	c.ws.notifier.Success(success)
	// Refresh notifies its own failure; the mutation itself succeeded.
	_ = c.Refresh(ctx)
	return out, nil
}

func (c *Collection[T]) scope(ctx context.Context) (context.Context, error) {
	scoped, err := c.ws.Context(ctx)
	if err != nil {
		c.ws.notifier.Error(Message(err, ""))
		return ctx, err
	}
	return scoped, nil
}

// Message turns err into user-facing text. Raw backend errors are never
// shown; they fall back to the generic message.
func Message(err error, fallback string) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return "Dados inválidos: " + describeFields(verr.Fields)
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Kind.Message()
	}
	if errors.Is(err, ErrUnauthenticated) {
		return "Faça login para continuar."
	}
	return fallback
}

// title upper-cases the first letter. Casers are stateful, so one is built per call.
func title(s string) string {
	return cases.Title(language.BrazilianPortuguese, cases.NoLower).String(s)
}

func describeFields(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+strings.Join(fields[f], ", "))
	}
	return strings.Join(parts, "; ")
}
