package fakesdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// Statement is one statement of a query, as seen by a StatementHandler.
type Statement struct {
	Text      string
	Namespace string
	Database  string
	Vars      map[string]models.Value
}

// StatementHandler answers statements the fake does not understand itself.
// The result is converted with models.ValueOf; an error becomes an ERR outcome.
type StatementHandler func(ctx context.Context, stmt Statement) (any, error)

type statementHandler struct {
	prefix string
	fn     StatementHandler
}

// HandleStatement routes statements starting with prefix (case-insensitive)
// to fn. Handlers take precedence over the built-in statements.
func (s *Server) HandleStatement(prefix string, fn StatementHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, statementHandler{prefix: strings.ToUpper(prefix), fn: fn})
}

var (
	reSelect = regexp.MustCompile(`(?is)^SELECT\s+\*\s+FROM\s+(.+)$`)
	reCreate = regexp.MustCompile(`(?is)^CREATE\s+(\S+)(?:\s+CONTENT\s+(\S+))?$`)
	reUpdate = regexp.MustCompile(`(?is)^UPDATE\s+(\S+)(?:\s+(CONTENT|MERGE|PATCH)\s+(\S+))?$`)
	reDelete = regexp.MustCompile(`(?is)^DELETE\s+(?:\*\s+FROM\s+)?(\S+)$`)
	reReturn = regexp.MustCompile(`(?is)^RETURN\s+(.+)$`)
	reThrow  = regexp.MustCompile(`(?is)^THROW\s+(.+)$`)
	reSleep  = regexp.MustCompile(`(?is)^SLEEP\s+(\S+)$`)
	reCast   = regexp.MustCompile(`(?is)^<(float|int|string)>\s*\((.+)\)$`)
	reBinary = regexp.MustCompile(`^(\S+)\s*([-+*/])\s*(\S+)$`)
	reIdent  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reParam  = regexp.MustCompile(`^\$[A-Za-z0-9_]+$`)
)

var errDivideByZero = errors.New("Cannot divide by zero")

type execEnv struct {
	ctx   context.Context
	scope string
	vars  map[string]models.Value
}

type executor func(env *execEnv) (models.Value, error)

// runQuery parses every statement before running any of them, so a query
// with an unknown statement is rejected as a whole.
func (s *Server) runQuery(ctx context.Context, sess *Session, sql string, vars map[string]models.Value) (models.Value, *Error) {
	texts := splitStatements(sql)

	s.mu.RLock()
	handlers := append([]statementHandler(nil), s.handlers...)
	s.mu.RUnlock()

	execs := make([]executor, len(texts))
	for i, text := range texts {
		exec := s.compile(text, sess, handlers)
		if exec == nil {
			return models.NoneValue(), &Error{Code: codeServer, Message: fmt.Sprintf("Parse error: unexpected statement %q", text)}
		}
		execs[i] = exec
	}

	env := &execEnv{ctx: ctx, scope: sess.Namespace + "/" + sess.Database, vars: vars}
	results := make([]models.Value, len(execs))
	for i, exec := range execs {
		start := time.Now()
		result, err := exec(env)

		status := models.StringValue("OK")
		if err != nil {
			status = models.StringValue("ERR")
			result = models.StringValue(err.Error())
		}
		results[i] = models.ObjectValue(map[string]models.Value{
			"status": status,
			"time":   models.StringValue(time.Since(start).String()),
			"result": result,
		})
	}
	return models.ArrayValue(results...), nil
}

func (s *Server) compile(text string, sess *Session, handlers []statementHandler) executor {
	upper := strings.ToUpper(text)
	for _, h := range handlers {
		if strings.HasPrefix(upper, h.prefix) {
			fn := h.fn
			return func(env *execEnv) (models.Value, error) {
				res, err := fn(env.ctx, Statement{Text: text, Namespace: sess.Namespace, Database: sess.Database, Vars: env.vars})
				if err != nil {
					return models.NoneValue(), err
				}
				return models.ValueOf(res)
			}
		}
	}

	if m := reSelect.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			return s.selectFrom(env, strings.TrimSpace(m[1]))
		}
	}
	if m := reCreate.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			thing, err := evalThing(m[1], env.vars)
			if err != nil {
				return models.NoneValue(), err
			}
			data := models.NoneValue()
			if m[2] != "" {
				if data, err = evalExpr(m[2], env.vars); err != nil {
					return models.NoneValue(), err
				}
			}
			return s.store.create(env.scope, thing, data)
		}
	}
	if m := reUpdate.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			thing, err := evalThing(m[1], env.vars)
			if err != nil {
				return models.NoneValue(), err
			}
			mode, data := "MERGE", models.ObjectValue(nil)
			if m[2] != "" {
				mode = strings.ToUpper(m[2])
				if data, err = evalExpr(m[3], env.vars); err != nil {
					return models.NoneValue(), err
				}
			}
			return s.store.update(env.scope, thing, mode, data)
		}
	}
	if m := reDelete.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			thing, err := evalThing(m[1], env.vars)
			if err != nil {
				return models.NoneValue(), err
			}
			return s.store.remove(env.scope, thing)
		}
	}
	if m := reReturn.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			return evalExpr(m[1], env.vars)
		}
	}
	if m := reThrow.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			v, err := evalExpr(m[1], env.vars)
			if err != nil {
				return models.NoneValue(), err
			}
			if msg, err := v.AsString(); err == nil {
				return models.NoneValue(), errors.New(msg)
			}
			return models.NoneValue(), errors.New(v.String())
		}
	}
	if m := reSleep.FindStringSubmatch(text); m != nil {
		return func(env *execEnv) (models.Value, error) {
			d, err := models.ParseDuration(m[1])
			if err != nil {
				return models.NoneValue(), err
			}
			select {
			case <-time.After(d):
			case <-env.ctx.Done():
				return models.NoneValue(), env.ctx.Err()
			}
			return models.NoneValue(), nil
		}
	}
	return nil
}

// selectFrom handles SELECT * FROM over a table, a record, a bound variable
// or an expression. Plain values select as a one item array.
func (s *Server) selectFrom(env *execEnv, target string) (models.Value, error) {
	if reIdent.MatchString(target) || (!strings.HasPrefix(target, "$") && strings.Contains(target, ":") && reBinary.FindStringSubmatch(target) == nil) {
		thing, err := evalThing(target, env.vars)
		if err != nil {
			return models.NoneValue(), err
		}
		return s.store.selectThing(env.scope, thing)
	}

	v, err := evalExpr(target, env.vars)
	if err != nil {
		return models.NoneValue(), err
	}
	switch v.Kind() {
	case models.KindRecordID, models.KindTable:
		return s.store.selectThing(env.scope, v)
	case models.KindNone, models.KindNull:
		return models.ArrayValue(), nil
	case models.KindArray:
		return v, nil
	}
	return models.ArrayValue(v), nil
}

// evalThing resolves the target of a data statement: a variable, a record
// literal such as person:tobie, or a table name.
func evalThing(text string, vars map[string]models.Value) (models.Value, error) {
	if strings.HasPrefix(text, "$") {
		return lookup(text, vars), nil
	}
	if strings.Contains(text, ":") {
		rid, err := models.ParseRecordID(text)
		if err != nil {
			return models.NoneValue(), err
		}
		return models.RecordIDValue(rid), nil
	}
	if !reIdent.MatchString(text) {
		return models.NoneValue(), fmt.Errorf("Parse error: invalid target %q", text)
	}
	return models.TableValue(models.Table(text)), nil
}

func lookup(name string, vars map[string]models.Value) models.Value {
	if v, ok := vars[strings.TrimPrefix(name, "$")]; ok {
		return v
	}
	return models.NoneValue()
}

func evalExpr(text string, vars map[string]models.Value) (models.Value, error) {
	text = strings.TrimSpace(text)

	if m := reCast.FindStringSubmatch(text); m != nil {
		v, err := evalExpr(m[2], vars)
		if err != nil {
			return models.NoneValue(), err
		}
		return cast(strings.ToLower(m[1]), v)
	}
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		return evalExpr(text[1:len(text)-1], vars)
	}
	if v, ok := literal(text, vars); ok {
		return v, nil
	}
	if m := reBinary.FindStringSubmatch(text); m != nil {
		a, okA := literal(m[1], vars)
		b, okB := literal(m[3], vars)
		if okA && okB {
			return arithmetic(a, m[2], b)
		}
	}
	return models.NoneValue(), fmt.Errorf("Parse error: unsupported expression %q", text)
}

func literal(text string, vars map[string]models.Value) (models.Value, bool) {
	switch {
	case reParam.MatchString(text):
		return lookup(text, vars), true
	case len(text) >= 2 && (text[0] == '\'' || text[0] == '"') && text[len(text)-1] == text[0]:
		return models.StringValue(text[1 : len(text)-1]), true
	}

	switch strings.ToUpper(text) {
	case "TRUE":
		return models.BoolValue(true), true
	case "FALSE":
		return models.BoolValue(false), true
	case "NULL":
		return models.NullValue(), true
	case "NONE":
		return models.NoneValue(), true
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return models.IntValue(i), true
	}
	if f, err := strconv.ParseFloat(strings.TrimSuffix(text, "f"), 64); err == nil {
		return models.FloatValue(f), true
	}
	return models.NoneValue(), false
}

func arithmetic(a models.Value, op string, b models.Value) (models.Value, error) {
	if a.Kind() == models.KindInt && b.Kind() == models.KindInt && op != "/" {
		x, _ := a.AsInt()
		y, _ := b.AsInt()
		switch op {
		case "+":
			return models.IntValue(x + y), nil
		case "-":
			return models.IntValue(x - y), nil
		case "*":
			return models.IntValue(x * y), nil
		}
	}

	x, errA := a.AsFloat()
	y, errB := b.AsFloat()
	if errA != nil || errB != nil {
		return models.NoneValue(), fmt.Errorf("Cannot perform arithmetic on %s and %s", a.Kind(), b.Kind())
	}
	switch op {
	case "+":
		return models.FloatValue(x + y), nil
	case "-":
		return models.FloatValue(x - y), nil
	case "*":
		return models.FloatValue(x * y), nil
	}
	if y == 0 {
		return models.NoneValue(), errDivideByZero
	}
	return models.FloatValue(x / y), nil
}

func cast(kind string, v models.Value) (models.Value, error) {
	switch kind {
	case "float":
		f, err := v.AsFloat()
		if err != nil {
			return models.NoneValue(), fmt.Errorf("Expected a float but cannot convert %s into a float", v)
		}
		return models.FloatValue(f), nil
	case "int":
		if f, err := v.AsFloat(); err == nil {
			return models.IntValue(int64(f)), nil
		}
		return models.NoneValue(), fmt.Errorf("Expected an int but cannot convert %s into an int", v)
	}
	if str, err := v.AsString(); err == nil {
		return models.StringValue(str), nil
	}
	return models.StringValue(v.String()), nil
}

// splitStatements splits on semicolons outside of quotes and drops empty statements.
func splitStatements(sql string) []string {
	var (
		out   []string
		sb    strings.Builder
		quote rune
	)
	flush := func() {
		if stmt := strings.TrimSpace(sb.String()); stmt != "" {
			out = append(out, stmt)
		}
		sb.Reset()
	}
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			flush()
			continue
		}
		sb.WriteRune(r)
	}
	flush()
	return out
}
