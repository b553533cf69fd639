package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/form"
	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call split into what rollbar understands.
type entry struct {
	msg    string
	errs   []error
	actor  *user.Actor
	extras map[string]interface{}
	other  []interface{}
}

// parse accepts, in any order: error, user.Actor, form.Form, template.Template,
// map[string]interface{} (merged into the extras) and anything else printable.
func parse(msg string, args []interface{}) entry {
	e := entry{msg: msg, extras: make(map[string]interface{})}
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			e.errs = append(e.errs, v)
		case user.Actor:
			if e.actor == nil { // first actor wins
				actor := v
				e.actor = &actor
				e.extras["actor_roles"] = strings.Join(v.Roles, ",")
				if v.RollNumber != "" {
					e.extras["actor_roll_number"] = v.RollNumber
				}
			}
		case form.Form:
			e.extras["form_id"] = v.ID
			e.extras["form_status"] = string(v.Status)
			e.extras["roll_number"] = v.RollNumber
			e.extras["template_id"] = v.TemplateID
		case template.Template:
			e.extras["template_id"] = v.ID
		case map[string]interface{}:
			for k, val := range v {
				e.extras[k] = val
			}
		default:
			e.other = append(e.other, v)
		}
	}
	return e
}

// rollbarArgs returns the arguments of a rollbar.<Level> call for e.
func (e entry) rollbarArgs() []interface{} {
	if e.actor != nil {
		rollbar.SetPerson(e.actor.ID, e.actor.Name, "")
	} else {
		rollbar.ClearPerson()
	}

	args := []interface{}{e.msg}
	if len(e.errs) > 0 {
		args = append(args, e.errs[0])
	}
	extras := make(map[string]interface{}, len(e.extras)+1)
	for k, v := range e.extras {
		extras[k] = v
	}
	if len(e.other) > 0 {
		extras["details"] = fmt.Sprint(e.other...)
	}
	if len(extras) > 0 {
		args = append(args, extras)
	}
	return args
}

// line renders e as `msg key=value ...` with sorted keys.
func (e entry) line() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.actor != nil {
		fmt.Fprintf(&b, " actor=%s", e.actor.ID)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.extras[k])
	}
	for _, o := range e.other {
		fmt.Fprintf(&b, " %v", o)
	}
	return b.String()
}

func (l RollbarLogger) print(e entry) {
	l.std.Println(e.line())
	for _, err := range e.errs {
		l.std.Printf("%+v\n", err)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	e := parse(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.print(e)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := parse(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.print(e)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := parse(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.print(e)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := parse(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.print(e)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := parse(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	l.print(e)
	l.std.Fatal(msg)
}
