package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/transfer"
)

func newShareCmd() *cobra.Command {
	var (
		password  string
		expiresIn time.Duration
		update    bool
	)

	cmd := &cobra.Command{
		Use:   "share <path>",
		Short: "Share a file or folder by link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			item, err := a.resolveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if item == nil {
				return fmt.Errorf("the root folder cannot be shared")
			}

			params := api.ShareParams{}

			if cmd.Flags().Changed("password") {
				params.Password = &password
			}

			if cmd.Flags().Changed("expires-in") {
				expiry := time.Now().Add(expiresIn)
				params.Expiry = &expiry
			}

			var (
				shared *api.SharedItem
				resp   *api.Response
			)

			if update {
				existing, infoResp, infoErr := a.client.SharedItemForItem(cmd.Context(), item.ID)
				if infoErr != nil {
					return infoErr
				}

				if existing == nil {
					return fieldErrors(fmt.Sprintf("%s is not shared", args[0]), infoResp)
				}

				shared, resp, err = a.client.UpdateShare(cmd.Context(), existing.ID, params)
			} else {
				shared, resp, err = a.client.Share(cmd.Context(), item.ID, params)
			}

			if err != nil {
				return err
			}

			if shared == nil {
				return fieldErrors("sharing failed", resp)
			}

			// The item is now flagged as shared in its parent listing.
			item.IsShared = true
			a.cache.UpdateItem(item.ID, item.Parent, *item)

			printSharedItem(shared)

			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "protect the link with a password")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "expire the link after this duration (e.g. 72h)")
	cmd.Flags().BoolVar(&update, "update", false, "modify the existing share instead of creating one")

	return cmd
}

func newUnshareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unshare <path>",
		Short: "Revoke a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			item, err := a.resolveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if item == nil {
				return fmt.Errorf("the root folder has no share")
			}

			shared, resp, err := a.client.SharedItemForItem(cmd.Context(), item.ID)
			if err != nil {
				return err
			}

			if shared == nil {
				return fieldErrors(fmt.Sprintf("%s is not shared", args[0]), resp)
			}

			delResp, err := a.client.DeleteShare(cmd.Context(), shared.ID)
			if err != nil {
				return err
			}

			if !delResp.OK {
				return fieldErrors("revoking share failed", delResp)
			}

			item.IsShared = false
			a.cache.UpdateItem(item.ID, item.Parent, *item)
			statusf("Share revoked for %s\n", args[0])

			return nil
		},
	}
}

func newSharesCmd() *cobra.Command {
	var (
		shareID  string
		fetch    bool
		password string
		destDir  string
	)

	cmd := &cobra.Command{
		Use:   "shares [path]",
		Short: "Inspect a share link, or fetch a public one by ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var (
				shared *api.SharedItem
				resp   *api.Response
			)

			switch {
			case shareID != "":
				shared, resp, err = a.client.SharedItem(cmd.Context(), shareID)

			case len(args) == 1:
				var item *api.Item

				item, err = a.resolveItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if item == nil {
					return fmt.Errorf("the root folder has no share")
				}

				shared, resp, err = a.client.SharedItemForItem(cmd.Context(), item.ID)

			default:
				return fmt.Errorf("provide a path or --id")
			}

			if err != nil {
				return err
			}

			if shared == nil {
				return fieldErrors("no share found", resp)
			}

			if fetch {
				return fetchShared(cmd, a, shared, password, destDir)
			}

			printSharedItem(shared)

			return nil
		},
	}

	cmd.Flags().StringVar(&shareID, "id", "", "look up a public share by its ID")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "download the shared file")
	cmd.Flags().StringVar(&password, "password", "", "password for a protected share")
	cmd.Flags().StringVarP(&destDir, "output-dir", "o", ".", "destination directory for --fetch")

	return cmd
}

// fetchShared downloads a shared file through its share-scoped download URL,
// posting the password when the link is protected.
func fetchShared(cmd *cobra.Command, a *app, shared *api.SharedItem, password, destDir string) error {
	if !shared.Item.IsFile {
		return fmt.Errorf("%s is a folder; only shared files can be fetched", shared.Item.Name)
	}

	url := shared.DownloadURL
	if url == "" {
		url = shared.Item.DownloadURL
	}

	if url == "" {
		return transfer.ErrNoDownloadURL
	}

	if shared.HasPassword && password == "" {
		var err error

		password, err = promptPassword("Share password: ")
		if err != nil {
			return err
		}
	}

	if err := a.withJournal(); err != nil {
		return err
	}
	defer a.closeJournal()

	renderer := newProgressRenderer("downloading " + shared.Item.Name)

	result, err := a.transfer.DownloadWith(cmd.Context(), transfer.Request{
		URL:      url,
		Name:     shared.Item.Name,
		ItemID:   shared.Item.ID,
		Password: password,
	}, destDir, renderer.Tick)
	renderer.Done()

	if err != nil {
		return err
	}

	if !result.OK {
		return fieldErrors(fmt.Sprintf("fetch rejected (status %d)", result.Status),
			&api.Response{Status: result.Status, Data: result.Data})
	}

	statusf("Saved %s (%s)\n", result.Path, formatSize(result.Bytes))

	return nil
}

func printSharedItem(shared *api.SharedItem) {
	if flagJSON {
		json.NewEncoder(os.Stdout).Encode(shared)

		return
	}

	fmt.Printf("Share ID:  %s\n", shared.ID)
	fmt.Printf("Item:      %s\n", shared.Item.Name)
	fmt.Printf("Sharer:    %s\n", shared.Sharer.Username)
	fmt.Printf("Protected: %t\n", shared.HasPassword)

	if shared.DoesExpire && shared.Expiry != nil {
		fmt.Printf("Expires:   %s\n", formatTime(*shared.Expiry))
	} else {
		fmt.Printf("Expires:   never\n")
	}

	if shared.DownloadURL != "" {
		fmt.Printf("Download:  %s\n", shared.DownloadURL)
	}
}
