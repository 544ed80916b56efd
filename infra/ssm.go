package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/distbench/orchestrator/utils"
)

const ssmTimeoutSeconds = 3600

// Command tracks one in-flight SSM run document across its target instances.
type Command struct {
	ID          string
	InstanceIDs []string
	Comment     string
}

// SendCommand runs a shell script on each instance via the SSM agent.
func SendCommand(ctx context.Context, client *ssm.Client, comment string, instanceIDs, commands []string) (*Command, error) {
	out, err := client.SendCommand(ctx, &ssm.SendCommandInput{
		DocumentName:   aws.String("AWS-RunShellScript"),
		InstanceIds:    instanceIDs,
		Comment:        aws.String(comment),
		TimeoutSeconds: aws.Int32(ssmTimeoutSeconds),
		Parameters: map[string][]string{
			"commands": commands,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send command %q: %w", comment, err)
	}
	return &Command{
		ID:          aws.ToString(out.Command.CommandId),
		InstanceIDs: instanceIDs,
		Comment:     comment,
	}, nil
}

// PollCommand reports whether the command finished on every instance. A
// terminal failure on any instance is an error; an invocation the agent has
// not picked up yet counts as still running.
func PollCommand(ctx context.Context, client *ssm.Client, cmd *Command) (bool, error) {
	for _, instanceID := range cmd.InstanceIDs {
		out, err := client.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
			CommandId:  aws.String(cmd.ID),
			InstanceId: aws.String(instanceID),
		})
		if err != nil {
			var notYet *ssmtypes.InvocationDoesNotExist
			if errors.As(err, &notYet) {
				return false, nil
			}
			return false, fmt.Errorf("poll %q on %s: %w", cmd.Comment, instanceID, err)
		}
		switch out.Status {
		case ssmtypes.CommandInvocationStatusSuccess:
		case ssmtypes.CommandInvocationStatusPending,
			ssmtypes.CommandInvocationStatusInProgress,
			ssmtypes.CommandInvocationStatusDelayed:
			return false, nil
		default:
			return false, fmt.Errorf("%q on %s: %s: %s",
				cmd.Comment, instanceID, out.Status, aws.ToString(out.StandardErrorContent))
		}
	}
	return true, nil
}

// WaitComplete blocks until every command finishes, polling on a fixed delay.
func WaitComplete(ctx context.Context, client *ssm.Client, delay time.Duration, cmds []*Command) error {
	pending := append([]*Command(nil), cmds...)
	for len(pending) > 0 {
		remaining := pending[:0]
		for _, cmd := range pending {
			done, err := PollCommand(ctx, client, cmd)
			if err != nil {
				return err
			}
			if done {
				utils.OrchLog("ssm %q complete", cmd.Comment)
				continue
			}
			remaining = append(remaining, cmd)
		}
		pending = remaining
		if len(pending) == 0 {
			break
		}
		utils.OrchLog("waiting on %d ssm command(s)", len(pending))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}
