package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/result"
	"github.com/stake-plus/ibots/src/graphql"
	"github.com/stake-plus/ibots/src/journal"
)

// Vars are operation variables keyed by snake_case name. Nil values are
// omitted; handles are sent as their raw ids.
type Vars map[string]any

const (
	kindList   = "list"
	kindNode   = "node"
	kindCreate = "create"
	kindUpdate = "update"
	kindDelete = "delete"
)

// List runs a list operation and cleans every element with rules. A
// page-size "first" variable is injected when the caller gives none.
func (b *Bot) List(ctx context.Context, opName string, rules []result.Rule, vars Vars) ([]result.Record, error) {
	op, err := b.ops.Lookup(opName)
	if err != nil {
		return nil, err
	}
	if _, ok := vars["first"]; !ok && op.Accepts("first") {
		vars = withVar(vars, "first", b.pageSize)
	}
	resp, err := b.call(ctx, kindList, op, vars)
	if err != nil {
		return nil, err
	}
	top, err := result.Unwrap(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("core: %s: %w", opName, err)
	}
	recs, err := result.CleanList(result.Collapse(top), rules)
	if err != nil {
		return nil, fmt.Errorf("core: %s: %w", opName, err)
	}
	b.log.Debug().Str("operation", opName).Int("count", len(recs)).Interface("result", recs).Msg("Result")
	return recs, nil
}

// Node runs a single-node operation. A null node yields a nil record.
func (b *Bot) Node(ctx context.Context, opName string, rules []result.Rule, vars Vars) (result.Record, error) {
	op, err := b.ops.Lookup(opName)
	if err != nil {
		return nil, err
	}
	resp, err := b.call(ctx, kindNode, op, vars)
	if err != nil {
		return nil, err
	}
	top, err := result.Unwrap(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("core: %s: %w", opName, err)
	}
	if top == nil {
		return nil, nil
	}
	node, ok := result.Collapse(top).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("core: %s: %w: node is %T", opName, result.ErrShape, top)
	}
	rec, err := result.Clean(node, rules)
	if err != nil {
		return nil, fmt.Errorf("core: %s: %w", opName, err)
	}
	b.log.Debug().Str("operation", opName).Interface("result", rec).Msg("Result")
	return rec, nil
}

// Create runs a mutation as this bot, injecting the user variable. Remote
// failures report false rather than an error, so idempotent operations such
// as likes and follows can be probed; only local mistakes return an error.
func (b *Bot) Create(ctx context.Context, opName string, vars Vars) (bool, error) {
	return b.mutate(ctx, kindCreate, opName, vars)
}

// Delete is Create for removals.
func (b *Bot) Delete(ctx context.Context, opName string, vars Vars) (bool, error) {
	return b.mutate(ctx, kindDelete, opName, vars)
}

// CreateReturning runs a create mutation and returns a handle for the new
// entity, built from the first scalar of the payload and target.
func (b *Bot) CreateReturning(ctx context.Context, opName string, target bid.EntityType, vars Vars) (bid.BID, error) {
	if _, ok := vars["user"]; ok {
		return bid.BID{}, fmt.Errorf("%w: %s", ErrImplicitUser, opName)
	}
	op, err := b.ops.Lookup(opName)
	if err != nil {
		return bid.BID{}, err
	}
	resp, err := b.call(ctx, kindCreate, op, withVar(vars, "user", b.BID))
	if err != nil {
		return bid.BID{}, err
	}
	raw, ok := result.FirstScalar(result.Collapse(resp.Data))
	if !ok {
		return bid.BID{}, fmt.Errorf("core: %s: %w: no id in payload", opName, result.ErrShape)
	}
	id, err := scalarString(raw)
	if err != nil {
		return bid.BID{}, fmt.Errorf("core: %s: %w", opName, err)
	}
	return bid.New(id, target)
}

// Update runs an update mutation. The caller must name the entity with "id"
// and must not pass "user".
func (b *Bot) Update(ctx context.Context, opName string, vars Vars) (bool, error) {
	if _, ok := vars["id"]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUpdateRequiresID, opName)
	}
	if _, ok := vars["user"]; ok {
		return false, fmt.Errorf("%w: %s", ErrImplicitUser, opName)
	}
	op, err := b.ops.Lookup(opName)
	if err != nil {
		return false, err
	}
	return b.succeeded(b.call(ctx, kindUpdate, op, vars))
}

func (b *Bot) mutate(ctx context.Context, kind, opName string, vars Vars) (bool, error) {
	if _, ok := vars["user"]; ok {
		return false, fmt.Errorf("%w: %s", ErrImplicitUser, opName)
	}
	op, err := b.ops.Lookup(opName)
	if err != nil {
		return false, err
	}
	return b.succeeded(b.call(ctx, kind, op, withVar(vars, "user", b.BID)))
}

func (b *Bot) succeeded(_ *graphql.Response, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if graphql.IsRemote(err) {
		return false, nil
	}
	return false, err
}

// call validates every name in vars against op, including nil ones, then
// prepares, executes and journals the call. Validation failures never reach
// the transport.
func (b *Bot) call(ctx context.Context, kind string, op *graphql.Operation, vars Vars) (*graphql.Response, error) {
	if err := op.Validate(vars); err != nil {
		b.log.Error().Err(err).Str("operation", op.Name).Msg("Variable not supported")
		return nil, err
	}
	prepared := prepare(vars)

	ev := b.log.Debug()
	if kind == kindCreate {
		ev = b.log.Info()
	}
	ev.Str("operation", op.Name).Msgf("Calling %s", op.Name)
	b.log.Debug().Str("operation", op.Name).Interface("variables", prepared).Msg("Variables")

	resp, err := b.transport.Execute(ctx, op, prepared)

	entry := journal.Entry{Time: time.Now().UTC(), Kind: kind, Operation: op.Name, OK: err == nil}
	if raw, jerr := json.Marshal(prepared); jerr == nil {
		entry.Variables = string(raw)
	}
	if err != nil {
		entry.Error = err.Error()
		b.log.Warn().Err(err).Str("operation", op.Name).Msg("remote call failed")
	}
	b.journal.Record(ctx, entry)

	if err != nil {
		return resp, err
	}
	if resp == nil {
		return nil, fmt.Errorf("core: %s: empty response", op.Name)
	}
	return resp, nil
}

// prepare drops nil variables and unwraps handles to raw ids.
func prepare(vars Vars) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		if isNil(v) {
			continue
		}
		if bid.Is(v) {
			h, err := bid.From(v)
			if err == nil {
				out[k] = h.ID
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case bid.BID:
		return x.IsZero()
	case *bid.BID:
		return x == nil || x.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func withVar(vars Vars, key string, value any) Vars {
	out := make(Vars, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out[key] = value
	return out
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return "", errors.New("boolean where an id was expected")
	default:
		return fmt.Sprint(x), nil
	}
}
