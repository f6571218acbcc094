package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/rackcheck/internal/models"
	"github.com/raphaelgruber/rackcheck/internal/service"
)

var (
	validateFile       string
	validateDevice     string
	validatePod        string
	validateRack       string
	validateSwitch     string
	validatePorts      []string
	validateParts      []string
	validateAction     string
	validateDesc       string
	validateJSON       bool
	validateStats      bool
	validateNoProgress bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a work ticket and assign its priority",
	Long: `Validate a work ticket against datacenter knowledge and assign a priority.

The ticket comes from flags or from a YAML/JSON file (--file). Flags given
alongside --file override the file's fields.

Examples:
  rackcheck validate --switch switch-7b --pod Pod_7 --device H100_GPU
  rackcheck validate --parts 800G_OSFP_Transceiver,DAC_Cable_3m --action INSTALL
  rackcheck validate --file ticket.yaml --json
  rackcheck validate --file ticket.yaml --stats`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "ticket file (YAML or JSON)")
	validateCmd.Flags().StringVar(&validateDevice, "device", "", "device to install or service")
	validateCmd.Flags().StringVar(&validatePod, "pod", "", "target pod")
	validateCmd.Flags().StringVar(&validateRack, "rack", "", "target rack")
	validateCmd.Flags().StringVar(&validateSwitch, "switch", "", "switch to cable to")
	validateCmd.Flags().StringSliceVar(&validatePorts, "ports", nil, "switch ports")
	validateCmd.Flags().StringSliceVar(&validateParts, "parts", nil, "required parts")
	validateCmd.Flags().StringVar(&validateAction, "action", "", "work action (default INSTALL)")
	validateCmd.Flags().StringVar(&validateDesc, "description", "", "free-text description")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print report and priority as JSON")
	validateCmd.Flags().BoolVar(&validateStats, "stats", false, "print timing statistics")
	validateCmd.Flags().BoolVar(&validateNoProgress, "no-progress", false, "disable the interactive lane progress display")
}

// validateOutput is the JSON shape printed by --json.
type validateOutput struct {
	Ticket   models.TicketFacts         `json:"ticket"`
	Report   *models.ValidationReport   `json:"report"`
	Priority *models.PriorityAssignment `json:"priority"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	ticket, err := buildTicket(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipeline, err := getPipeline(ctx)
	if err != nil {
		return err
	}

	var (
		report     *models.ValidationReport
		assignment *models.PriorityAssignment
	)
	interactive := !validateJSON && !validateNoProgress && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		report, assignment, err = RunLaneProgress(ctx, pipeline, ticket)
		if err != nil {
			return err
		}
	} else {
		report, assignment = pipeline.Run(ctx, ticket)
	}

	if validateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(validateOutput{Ticket: ticket, Report: report, Priority: assignment}); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	} else {
		fmt.Print(renderReport(defaultTheme, report, assignment))
	}

	if validateStats {
		fmt.Println()
		printStats(collector.Snapshot())
	}
	return nil
}

// buildTicket reads --file when given and applies flag overrides.
func buildTicket(cmd *cobra.Command) (models.TicketFacts, error) {
	var ticket models.TicketFacts
	if validateFile != "" {
		t, err := readTicketFile(validateFile)
		if err != nil {
			return ticket, err
		}
		ticket = t
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		ticket.Device = validateDevice
	}
	if flags.Changed("pod") {
		ticket.Pod = validatePod
	}
	if flags.Changed("rack") {
		ticket.Rack = validateRack
	}
	if flags.Changed("switch") {
		ticket.Switch = validateSwitch
	}
	if flags.Changed("ports") {
		ticket.Ports = validatePorts
	}
	if flags.Changed("parts") {
		ticket.RequiredParts = validateParts
	}
	if flags.Changed("action") {
		ticket.Action = validateAction
	}
	if flags.Changed("description") {
		ticket.Description = validateDesc
	}

	if ticket.Device == "" && ticket.Switch == "" && ticket.Pod == "" && len(ticket.RequiredParts) == 0 {
		return ticket, fmt.Errorf("ticket has nothing to validate: set --device, --switch/--pod, --parts or --file")
	}
	return ticket, nil
}

// readTicketFile decodes a YAML or JSON ticket.
func readTicketFile(path string) (models.TicketFacts, error) {
	var ticket models.TicketFacts
	data, err := os.ReadFile(path)
	if err != nil {
		return ticket, fmt.Errorf("read ticket: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &ticket); err != nil {
			return ticket, fmt.Errorf("parse ticket %s: %w", path, err)
		}
		return ticket, nil
	}
	if err := yaml.Unmarshal(data, &ticket); err != nil {
		return ticket, fmt.Errorf("parse ticket %s: %w", path, err)
	}
	return ticket, nil
}

// laneStatus is a one-word outcome for a lane event.
func laneStatus(e service.LaneEvent) string {
	switch {
	case e.Err != nil:
		return "failed"
	case e.Skipped:
		return "skipped"
	default:
		return "done"
	}
}
