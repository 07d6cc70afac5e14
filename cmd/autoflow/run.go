package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/autoflow/pkg/config"
	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/registry"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run one workflow and print its result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow",
				Aliases:  []string{"w"},
				Usage:    "Workflow ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Trigger data as a JSON object",
				Value: "{}",
			},
			&cli.StringFlag{Name: "scope", Usage: "Scope the workflow must belong to"},
			&cli.StringFlag{Name: "actor-id", Usage: "ID of the actor the run executes for"},
			&cli.BoolFlag{Name: "skip-conditions", Usage: "Run even when the workflow conditions do not match"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			var data map[string]any
			if err := json.Unmarshal([]byte(command.String("data")), &data); err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}

			rt, err := bootstrap(ctx, command, bootstrapOptions{service: "autoflow-run"})
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			opts := []engine.RunOption{
				engine.WithScope(command.String("scope")),
				engine.WithActor(models.Actor{ID: command.String("actor-id")}),
			}

			run := rt.coordinator.Fire
			if command.Bool("skip-conditions") {
				run = rt.coordinator.Run
			}

			result, err := run(ctx, command.String("workflow"), data, opts...)
			if errors.Is(err, engine.ErrConditionsNotMet) {
				return cli.Exit("conditions not met, workflow not fired", 2)
			}

			if err != nil {
				return err
			}

			if err := printJSON(os.Stdout, result); err != nil {
				return err
			}

			if !result.Succeeded() {
				return cli.Exit("", 1)
			}

			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check workflow definitions against the registered actions",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, command *cli.Command) error {
			defs, err := loadDefinitionsArg(command)
			if err != nil {
				return err
			}

			rt, err := bootstrap(ctx, command, bootstrapOptions{service: "autoflow-validate"})
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			return validateAll(os.Stdout, rt.registry, defs)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Save workflow definitions",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "validate", Usage: "Validate every definition before saving"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			defs, err := loadDefinitionsArg(command)
			if err != nil {
				return err
			}

			rt, err := bootstrap(ctx, command, bootstrapOptions{service: "autoflow-import"})
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			if command.Bool("validate") {
				if err := validateAll(io.Discard, rt.registry, defs); err != nil {
					return err
				}
			}

			for _, def := range defs {
				if err := rt.persistence.SaveWorkflow(ctx, def); err != nil {
					return fmt.Errorf("failed to save workflow %s: %w", def.ID, err)
				}

				rt.logger.InfoContext(ctx, "Imported workflow", "workflow_id", def.ID)
			}

			return nil
		},
	}
}

func loadDefinitionsArg(command *cli.Command) ([]*models.WorkflowDefinition, error) {
	path := command.Args().First()
	if path == "" {
		return nil, errors.New("workflows file is required")
	}

	return config.LoadWorkflows(path)
}

// validateAll reports every invalid definition, not only the first.
func validateAll(w io.Writer, reg *registry.Registry, defs []*models.WorkflowDefinition) error {
	var errs []error

	for _, def := range defs {
		err := reg.ValidateDefinition(def)
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(w, "%s: invalid: %v\n", def.ID, err)

			continue
		}

		fmt.Fprintf(w, "%s: ok\n", def.ID)
	}

	return errors.Join(errs...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
