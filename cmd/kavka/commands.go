package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/kavka/kavka/internal/api"
	"github.com/kavka/kavka/internal/broker"
	"github.com/kavka/kavka/internal/signal"
	"github.com/kavka/kavka/pkg/logger"
)

// oneShot 执行一次性命令并把响应信封以JSON输出到stdout
func oneShot(cmd *cobra.Command, run func(ctx context.Context, svc *api.Service) (interface{}, error)) error {
	svc, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	resp, runErr := run(ctx, svc)
	if runErr != nil {
		resp = api.NewErrorResponse(runErr)
	}

	out, err := sonic.ConfigDefault.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	if runErr != nil {
		return fmt.Errorf("%s failed", cmd.Name())
	}
	return nil
}

func connectionFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "connection", "", "connection id from the config file")
	_ = cmd.MarkFlagRequired("connection")
}

func snapshotCommand() *cobra.Command {
	var connection string
	cmd := &cobra.Command{
		Use:   "snapshot TOPIC",
		Short: "Consume a topic from the beginning up to its current high-water mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.StartConsumption(ctx, connection, args[0])
			})
		},
	}
	connectionFlag(cmd, &connection)
	return cmd
}

func topicsCommand() *cobra.Command {
	var connection string
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.ListTopics(ctx, connection)
			})
		},
	}
	connectionFlag(cmd, &connection)
	return cmd
}

func infoCommand() *cobra.Command {
	var connection string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Describe the cluster and the partitions of every topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.FetchInstanceInfo(ctx, connection)
			})
		},
	}
	connectionFlag(cmd, &connection)
	return cmd
}

func groupsCommand() *cobra.Command {
	var connection string
	cmd := &cobra.Command{
		Use:   "groups TOPIC",
		Short: "List consumer groups subscribed to a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.ListGroups(ctx, connection, args[0])
			})
		},
	}
	connectionFlag(cmd, &connection)
	return cmd
}

func createTopicCommand() *cobra.Command {
	var (
		connection        string
		partitions        int32
		replicationFactor int16
	)
	cmd := &cobra.Command{
		Use:   "create-topic NAME",
		Short: "Create a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := broker.TopicSpec{Name: args[0]}
			if cmd.Flags().Changed("partitions") {
				spec.Partitions = &partitions
			}
			if cmd.Flags().Changed("replication-factor") {
				spec.ReplicationFactor = &replicationFactor
			}
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.CreateTopic(ctx, connection, spec)
			})
		},
	}
	connectionFlag(cmd, &connection)
	cmd.Flags().Int32Var(&partitions, "partitions", -1, "number of partitions (broker default when unset)")
	cmd.Flags().Int16Var(&replicationFactor, "replication-factor", -1, "replication factor (broker default when unset)")
	return cmd
}

func removeTopicsCommand() *cobra.Command {
	var connection string
	cmd := &cobra.Command{
		Use:   "remove-topics NAME...",
		Short: "Delete one or more topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, func(ctx context.Context, svc *api.Service) (interface{}, error) {
				return svc.RemoveTopics(ctx, connection, args)
			})
		},
	}
	connectionFlag(cmd, &connection)
	return cmd
}
