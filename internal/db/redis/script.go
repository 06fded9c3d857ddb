package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tutorbot/internal/db"
)

// Run executes a script via EVALSHA (falling back to EVAL on NOSCRIPT).
// A nil reply is reported as db.ErrKeyNotFound.
func (s *Store) Run(ctx context.Context, script *db.Script, keys []string, args ...string) (int64, error) {
	n, err := s.lua(script).Exec(ctx, s.client, keys, args).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrKeyNotFound
		}
		return 0, &db.Error{Op: db.OpEval, Err: fmt.Errorf("%s: %w", script.Name(), err)}
	}
	return n, nil
}

// RunMulti executes the script once per call in a single DoMulti round-trip.
// Each call is atomic on its own; the batch as a whole is not.
func (s *Store) RunMulti(ctx context.Context, script *db.Script, calls []db.ScriptCall) ([]int64, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(calls))
	for i, c := range calls {
		cmds[i] = s.b().Eval().Script(script.Source()).
			Numkeys(int64(len(c.Keys))).Key(c.Keys...).Arg(c.Args...).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]int64, len(results))
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpEval, Err: fmt.Errorf("%s keys %v: %w", script.Name(), calls[i].Keys, err)}
		}
		out[i] = n
	}
	return out, nil
}

func (s *Store) lua(script *db.Script) *rueidis.Lua {
	if l, ok := s.scripts.Load(script); ok {
		return l.(*rueidis.Lua)
	}
	l, _ := s.scripts.LoadOrStore(script, rueidis.NewLuaScript(script.Source()))
	return l.(*rueidis.Lua)
}
