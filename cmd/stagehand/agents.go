package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dcallag/stagehand/pkg/models"
)

var (
	agentID     string
	agentName   string
	agentRole   string
	agentParent string
	agentModel  string
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage the agent registry",
	Long: `Register and list agents.

Agents execute graph nodes and scheduled tasks. An agent's role becomes
its system prompt. Agents with a parent are sub-agents: delegation
splits a task node's prompt across the assigned agent's sub-agents.`,
}

var agentsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an agent",
	Long: `Register an agent profile.

Examples:
  stagehand agents register --name researcher --role "You research topics thoroughly."
  stagehand agents register --name summarizer --parent <researcher-id> \
      --role "You write concise summaries." --model claude-3-5-haiku-20241022`,
	Args: cobra.NoArgs,
	RunE: runAgentsRegister,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	Args:  cobra.NoArgs,
	RunE:  runAgentsList,
}

var agentsRemoveCmd = &cobra.Command{
	Use:   "remove <agent-id>",
	Short: "Remove an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsRemove,
}

func init() {
	agentsRegisterCmd.Flags().StringVar(&agentID, "id", "", "Agent ID (default: generated)")
	agentsRegisterCmd.Flags().StringVar(&agentName, "name", "", "Agent name (required)")
	agentsRegisterCmd.Flags().StringVar(&agentRole, "role", "", "Role description used as the system prompt")
	agentsRegisterCmd.Flags().StringVar(&agentParent, "parent", "", "Parent agent ID (makes this a sub-agent)")
	agentsRegisterCmd.Flags().StringVar(&agentModel, "model", "", "Model override for this agent")

	agentsCmd.AddCommand(agentsRegisterCmd)
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsRemoveCmd)
}

func runAgentsRegister(cmd *cobra.Command, args []string) error {
	if agentName == "" {
		return fmt.Errorf("--name is required")
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if agentParent != "" {
		if _, err := a.store.GetAgent(agentParent); err != nil {
			return fmt.Errorf("parent agent %s: %w", agentParent, err)
		}
	}

	id := agentID
	if id == "" {
		id = uuid.NewString()
	}
	profile := &models.Agent{
		ID:       id,
		Name:     agentName,
		Role:     agentRole,
		ParentID: agentParent,
		Model:    agentModel,
	}

	if err := a.store.SaveAgent(profile); err != nil {
		return fmt.Errorf("save agent: %w", err)
	}

	fmt.Printf("%s Registered agent %s (%s)\n", color.GreenString("✓"), profile.Name, profile.ID)
	return nil
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	agents, err := a.store.ListAgents()
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered. Run 'stagehand agents register' to add one.")
		return nil
	}

	for _, ag := range agents {
		label := ag.Name
		if ag.IsSubAgent() {
			label = fmt.Sprintf("%s (sub-agent of %s)", ag.Name, ag.ParentID)
		}
		if ag.Model != "" {
			label += fmt.Sprintf(" [%s]", ag.Model)
		}
		fmt.Printf("%s  %s\n", ag.ID, label)
	}
	return nil
}

func runAgentsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteAgent(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s Removed agent %s\n", color.GreenString("✓"), args[0])
	return nil
}
