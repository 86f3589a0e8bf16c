// Package templates renders the notification texts sent to each department
// at each workflow stage.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"text/template"
	"text/template/parse"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// Stage names the point in the workflow a notification describes.
type Stage string

const (
	StageInitiatorToHead      Stage = "initiator_to_head"
	StageFromInitiator        Stage = "from_initiator"
	StageHeadToFinance        Stage = "head_to_finance"
	StageFromHead             Stage = "from_head"
	StageHeadToPayment        Stage = "head_to_payment"
	StageHeadFinanceToPayment Stage = "head_finance_to_payment"
	StageToPayment            Stage = "to_payment"
	StageFinanceToPayment     Stage = "finance_to_payment"
	StagePaid                 Stage = "paid"
	StageRejected             Stage = "rejected"
)

var ErrUnknownTemplate = errors.New("no template for department and stage")

// Context is the typed render input. Empty fields are absent from the
// template namespace, so a template that needs them fails with a
// *types.FormatError instead of rendering a blank.
type Context struct {
	RecordID          int64
	InitiatorNickname string
	Approver          string
	Record            *types.ExpenseRecord
}

func (c Context) values() map[string]string {
	v := make(map[string]string, 6)
	if c.RecordID > 0 {
		v["row_id"] = strconv.FormatInt(c.RecordID, 10)
	}
	if c.InitiatorNickname != "" {
		v["initiator_nickname"] = c.InitiatorNickname
	}
	if c.Approver != "" {
		v["approver"] = c.Approver
	}
	if c.Record != nil {
		v["record_data_text"] = c.Record.Summary()
		v["amount"] = c.Record.Amount.String()
		v["status"] = string(c.Record.Status)
	}
	return v
}

type key struct {
	dept  types.Department
	stage Stage
}

type compiled struct {
	tmpl *template.Template
	keys []string
}

// Registry holds parsed templates keyed by department and stage. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	entries map[key]compiled
}

// New parses every source. Placeholders use {{.name}} over the keys
// row_id, initiator_nickname, approver, record_data_text, amount, status.
func New(sources map[types.Department]map[Stage]string) (*Registry, error) {
	r := &Registry{entries: make(map[key]compiled)}
	for dept, stages := range sources {
		for stage, src := range stages {
			name := string(dept) + "/" + string(stage)
			t, err := template.New(name).Option("missingkey=error").Parse(src)
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", name, err)
			}
			r.entries[key{dept, stage}] = compiled{tmpl: t, keys: referencedKeys(t.Tree.Root)}
		}
	}
	return r, nil
}

// Default returns the registry built from the bundled texts.
func Default() *Registry {
	r, err := New(defaultSources)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Has(dept types.Department, stage Stage) bool {
	_, ok := r.entries[key{dept, stage}]
	return ok
}

// Render fills the template for (dept, stage) from rc.
func (r *Registry) Render(dept types.Department, stage Stage, rc Context) (string, error) {
	e, ok := r.entries[key{dept, stage}]
	if !ok {
		return "", &types.FormatError{Department: dept, Stage: string(stage), Err: ErrUnknownTemplate}
	}

	vals := rc.values()
	for _, k := range e.keys {
		if _, ok := vals[k]; !ok {
			return "", &types.FormatError{Department: dept, Stage: string(stage), Key: k}
		}
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, vals); err != nil {
		return "", &types.FormatError{Department: dept, Stage: string(stage), Err: err}
	}
	return buf.String(), nil
}

// referencedKeys collects the first identifier of every field reference.
func referencedKeys(root parse.Node) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n parse.Node)
	walkPipe := func(p *parse.PipeNode) {
		if p == nil {
			return
		}
		for _, cmd := range p.Cmds {
			for _, arg := range cmd.Args {
				walk(arg)
			}
		}
	}
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.ActionNode:
			walkPipe(n.Pipe)
		case *parse.IfNode:
			walkPipe(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.RangeNode:
			walkPipe(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.WithNode:
			walkPipe(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.PipeNode:
			walkPipe(n)
		case *parse.FieldNode:
			if len(n.Ident) > 0 && !seen[n.Ident[0]] {
				seen[n.Ident[0]] = true
				out = append(out, n.Ident[0])
			}
		}
	}
	walk(root)
	return out
}
