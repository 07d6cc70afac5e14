// Package actions wires the built-in action handlers to their collaborators.
package actions

import (
	"log/slog"
	"net/http"

	"github.com/dukex/autoflow/pkg/actions/aianalysis"
	"github.com/dukex/autoflow/pkg/actions/apicall"
	"github.com/dukex/autoflow/pkg/actions/createtask"
	"github.com/dukex/autoflow/pkg/actions/generatereport"
	"github.com/dukex/autoflow/pkg/actions/sendemail"
	"github.com/dukex/autoflow/pkg/actions/sendnotification"
	"github.com/dukex/autoflow/pkg/actions/updaterecord"
	"github.com/dukex/autoflow/pkg/integrations/ai"
	"github.com/dukex/autoflow/pkg/integrations/email"
	"github.com/dukex/autoflow/pkg/integrations/notify"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/records"
	"github.com/dukex/autoflow/pkg/registry"
)

// Dependencies are the external collaborators of the built-in handlers. Nil collaborators are
// replaced by logging or in-memory stand-ins, except Analyzer: ai_analysis fails at run time
// without one.
type Dependencies struct {
	Email        email.Sender
	Notifier     notify.Notifier
	Records      records.Store
	Targets      *records.Targets
	HTTPClient   *http.Client
	Analyzer     ai.Analyzer
	DefaultModel string
}

// Builtins returns every built-in handler.
func Builtins(deps Dependencies, logger *slog.Logger) ([]protocol.TypedHandler, error) {
	if deps.Email == nil {
		deps.Email = email.LogSender{Logger: logger.With("module", "email")}
	}

	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{Logger: logger.With("module", "notify")}
	}

	if deps.Records == nil {
		deps.Records = records.NewMemoryStore()
	}

	if deps.Targets == nil {
		targets, err := records.NewTargets(records.DefaultTargets())
		if err != nil {
			return nil, err
		}

		deps.Targets = targets
	}

	return []protocol.TypedHandler{
		sendemail.New(deps.Email),
		createtask.New(deps.Records, deps.Targets),
		updaterecord.New(deps.Records, deps.Targets),
		generatereport.New(deps.Records, deps.Targets),
		sendnotification.New(deps.Notifier),
		apicall.New(deps.HTTPClient),
		aianalysis.New(deps.Analyzer, deps.DefaultModel),
	}, nil
}

// RegisterBuiltins registers every built-in handler with reg.
func RegisterBuiltins(reg *registry.Registry, deps Dependencies, logger *slog.Logger) error {
	handlers, err := Builtins(deps, logger)
	if err != nil {
		return err
	}

	for _, handler := range handlers {
		reg.Register(handler.Type(), handler)
	}

	return nil
}
