package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/cuemby/raftcore/pkg/adminapi"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "raftctl",
	Short: "raftctl operates a running raftd node",
}

func init() {
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:9090", "Admin API address of a raftd node")
	rootCmd.AddCommand(applyCmd, barrierCmd, addCmd, assignCmd, removeCmd, transferCmd, statsCmd)
}

func client(cmd *cobra.Command) *adminapi.Client {
	addr, _ := cmd.Flags().GetString("addr")
	return adminapi.NewClient(addr)
}

var applyCmd = &cobra.Command{
	Use:   "apply PAYLOAD...",
	Short: "Submit one or more command payloads for replication",
	Long:  "Each PAYLOAD is either a raw string or, with --base64, base64-encoded bytes.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useBase64, _ := cmd.Flags().GetBool("base64")
		payloads := make([][]byte, len(args))
		for i, a := range args {
			if useBase64 {
				b, err := base64.StdEncoding.DecodeString(a)
				if err != nil {
					return fmt.Errorf("decode payload %d: %w", i, err)
				}
				payloads[i] = b
			} else {
				payloads[i] = []byte(a)
			}
		}
		resp, err := client(cmd).Apply(payloads)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d entries\n", len(resp.Values))
		return nil
	},
}

var barrierCmd = &cobra.Command{
	Use:   "barrier",
	Short: "Wait for every prior apply on the current leader to commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := client(cmd).Barrier(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add ID ADDRESS",
	Short: "Register a new non-voting member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		if _, err := client(cmd).Add(id, args[1]); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign ID ROLE",
	Short: "Change a member's role (voter, standby, spare)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		if _, err := client(cmd).Assign(id, args[1]); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Drop a member from the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		if _, err := client(cmd).Remove(id); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer [TARGET]",
	Short: "Transfer leadership, optionally to a specific server id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target uint64
		if len(args) == 1 {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target id: %w", err)
			}
			target = id
		}
		if _, err := client(cmd).Transfer(target); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a node's current engine state",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := client(cmd).Stats()
		if err != nil {
			return err
		}
		fmt.Printf("id=%d role=%s leader=%d term=%d last_log=%d commit=%d applied=%d voters=%d peers=%d\n",
			st.ID, st.Role, st.LeaderID, st.Term, st.LastLogIndex, st.CommitIndex, st.AppliedIndex, st.NumVoters, st.NumPeers)
		return nil
	},
}

func init() {
	applyCmd.Flags().Bool("base64", false, "Treat each PAYLOAD argument as base64-encoded bytes")
}
