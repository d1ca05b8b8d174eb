package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cassmem/internal/fsutil"
	"cassmem/internal/playbook"
	"cassmem/internal/scoring"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect and edit the playbook",
}

var playbookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active bullets from the merged view",
	RunE: func(cmd *cobra.Command, args []string) error {
		pb, err := playbook.LoadMerged(resolveSources())
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, b := range playbook.GetActiveBullets(pb) {
			marker := " "
			if b.Pinned {
				marker = "*"
			}
			fmt.Printf("%s %-36s [%s/%-11s] %6.2f  %s\n",
				marker, b.ID, b.Category, b.Maturity,
				scoring.EffectiveScore(b, cfg.Scoring, now), b.Content)
		}
		return nil
	},
}

var (
	addCategory string
	addTags     []string
)

var playbookAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a bullet directly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := resolveSources()
		err := fsutil.WithLock(src.GlobalPath, fsutil.LockOptions{}, func() error {
			pb, loadErr := playbook.Load(src.GlobalPath)
			if loadErr != nil {
				return loadErr
			}
			b := playbook.AddBullet(pb, playbook.NewBulletInput{
				Content:  args[0],
				Category: addCategory,
				Tags:     addTags,
			}, "", cfg.Scoring.DecayHalfLifeDays)
			if saveErr := playbook.Save(src.GlobalPath, pb); saveErr != nil {
				return saveErr
			}
			fmt.Printf("Added %s\n", b.ID)
			return nil
		})
		if err != nil {
			return failMutation("add_failed", err)
		}
		return nil
	},
}

var pinReason string

var playbookPinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin a bullet against auto-deprecation, pruning and inversion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateOwner(args[0], "pin_failed", func(pb *playbook.Playbook) error {
			return playbook.PinBullet(pb, args[0], pinReason)
		})
	},
}

var playbookUnpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Clear a bullet's pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateOwner(args[0], "unpin_failed", func(pb *playbook.Playbook) error {
			return playbook.UnpinBullet(pb, args[0])
		})
	},
}

var deprecateReason string

var playbookDeprecateCmd = &cobra.Command{
	Use:   "deprecate <id>",
	Short: "Retire a bullet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateOwner(args[0], "deprecate_failed", func(pb *playbook.Playbook) error {
			if !playbook.DeprecateBullet(pb, args[0], deprecateReason, "") {
				return playbook.NotFoundError(args[0])
			}
			return nil
		})
	},
}

var forgetReason string

var playbookForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Retire a bullet AND record its content as toxic so reflection can never resurrect it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := resolveSources()
		path, err := playbook.OwnerPath(src, args[0])
		if err != nil {
			return failMutation("forget_failed", err)
		}
		err = fsutil.WithLock(path, fsutil.LockOptions{}, func() error {
			pb, loadErr := playbook.Load(path)
			if loadErr != nil {
				return loadErr
			}
			b := playbook.FindBullet(pb, args[0])
			if b == nil {
				return playbook.NotFoundError(args[0])
			}
			toxicPath := src.GlobalToxicPath
			if src.RepoPath != "" && path == src.RepoPath {
				toxicPath = src.RepoToxicPath
			}
			if appendErr := playbook.AppendToxicEntry(toxicPath, playbook.ToxicEntry{
				ID:      b.ID,
				Content: b.Content,
				Reason:  forgetReason,
			}); appendErr != nil {
				return appendErr
			}
			playbook.DeprecateBullet(pb, b.ID, "forgotten: "+forgetReason, "")
			return playbook.Save(path, pb)
		})
		if err != nil {
			return failMutation("forget_failed", err)
		}
		return nil
	},
}

// mutateOwner runs a mutation against the file owning the id, under its lock.
func mutateOwner(id, failCode string, op func(*playbook.Playbook) error) error {
	src := resolveSources()
	path, err := playbook.OwnerPath(src, id)
	if err != nil {
		return failMutation(failCode, err)
	}
	err = fsutil.WithLock(path, fsutil.LockOptions{}, func() error {
		pb, loadErr := playbook.Load(path)
		if loadErr != nil {
			return loadErr
		}
		if opErr := op(pb); opErr != nil {
			return opErr
		}
		return playbook.Save(path, pb)
	})
	if err != nil {
		return failMutation(failCode, err)
	}
	return nil
}

func init() {
	playbookAddCmd.Flags().StringVar(&addCategory, "category", "general", "Bullet category")
	playbookAddCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tags (repeatable)")
	playbookPinCmd.Flags().StringVar(&pinReason, "reason", "", "Why the bullet is pinned")
	playbookDeprecateCmd.Flags().StringVar(&deprecateReason, "reason", "manually deprecated", "Deprecation reason")
	playbookForgetCmd.Flags().StringVar(&forgetReason, "reason", "manually forgotten", "Forget reason")

	playbookCmd.AddCommand(
		playbookListCmd,
		playbookAddCmd,
		playbookPinCmd,
		playbookUnpinCmd,
		playbookDeprecateCmd,
		playbookForgetCmd,
	)
}
