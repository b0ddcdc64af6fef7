package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/fscache"
)

// resolveItem maps a remote path to its item. "" and "/" name the root
// folder, which has no item of its own, so nil is returned for it.
func (a *app) resolveItem(ctx context.Context, remotePath string) (*api.Item, error) {
	trimmed := strings.Trim(remotePath, "/")
	if trimmed == "" {
		return nil, nil
	}

	item, resp, err := a.client.ItemByPath(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	if item == nil {
		if resp.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%s: no such file or folder", remotePath)
		}

		return nil, fieldErrors(fmt.Sprintf("resolving %s", remotePath), resp)
	}

	return item, nil
}

// resolveFolder is resolveItem restricted to folders.
func (a *app) resolveFolder(ctx context.Context, remotePath string) (*api.Item, error) {
	item, err := a.resolveItem(ctx, remotePath)
	if err != nil || item == nil {
		return item, err
	}

	if item.IsFile {
		return nil, fmt.Errorf("%s: not a folder", remotePath)
	}

	return item, nil
}

// parentIDOf returns the listing key id for an item, nil meaning the root.
func parentIDOf(item *api.Item) *string {
	if item == nil {
		return nil
	}

	return &item.ID
}

// listing returns the folder contents, served from the cache when fresh.
func (a *app) listing(ctx context.Context, parentID *string) (*api.Listing, error) {
	key := fscache.KeyOf(parentID)

	if cached, ok := a.cache.Listing(key); ok {
		return cached, nil
	}

	listing, resp, err := a.client.List(ctx, parentID)
	if err != nil {
		return nil, err
	}

	if listing == nil {
		return nil, fieldErrors("listing folder", resp)
	}

	a.cache.PutListing(key, *listing)

	return listing, nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			remotePath := "/"
			if len(args) == 1 {
				remotePath = args[0]
			}

			folder, err := a.resolveFolder(cmd.Context(), remotePath)
			if err != nil {
				return err
			}

			listing, err := a.listing(cmd.Context(), parentIDOf(folder))
			if err != nil {
				return err
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(listing.Items)
			}

			if len(listing.Items) == 0 {
				statusf("(empty)\n")

				return nil
			}

			rows := make([][]string, 0, len(listing.Items))

			for _, item := range listing.Items {
				kind := "folder"
				size := "-"

				if item.IsFile {
					kind = "file"
					size = formatSize(item.Size)
				}

				shared := ""
				if item.IsShared {
					shared = "shared"
				}

				rows = append(rows, []string{item.Name, kind, size, formatTime(item.UpdatedAt), shared})
			}

			printTable(os.Stdout, []string{"NAME", "TYPE", "SIZE", "MODIFIED", ""}, rows)

			return nil
		},
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show details of a file or folder",
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
				return fmt.Errorf("the root folder has no item record; use \"bongo ls /\"")
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(item)
			}

			kind := "folder"
			if item.IsFile {
				kind = "file"
			}

			fmt.Printf("Name:     %s\n", item.Name)
			fmt.Printf("ID:       %s\n", item.ID)
			fmt.Printf("Type:     %s\n", kind)

			if item.IsFile {
				fmt.Printf("Size:     %s\n", formatSize(item.Size))
			}

			fmt.Printf("Path:     %s\n", item.Path)
			fmt.Printf("Shared:   %t\n", item.IsShared)
			fmt.Printf("Created:  %s\n", formatTime(item.CreatedAt))
			fmt.Printf("Modified: %s\n", formatTime(item.UpdatedAt))

			return nil
		},
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			parentPath, name := path.Split(strings.Trim(args[0], "/"))
			if name == "" {
				return fmt.Errorf("folder name must not be empty")
			}

			parent, err := a.resolveFolder(cmd.Context(), parentPath)
			if err != nil {
				return err
			}

			item, resp, err := a.client.CreateFolder(cmd.Context(), parentIDOf(parent), name)
			if err != nil {
				return err
			}

			if item == nil {
				return fieldErrors("creating folder failed", resp)
			}

			a.cache.AddItem(*item)
			statusf("Created folder %s\n", args[0])

			return nil
		},
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> [remote-folder]",
		Short: "Upload a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if err := a.withJournal(); err != nil {
				return err
			}
			defer a.closeJournal()

			remotePath := "/"
			if len(args) == 2 {
				remotePath = args[1]
			}

			parent, err := a.resolveFolder(cmd.Context(), remotePath)
			if err != nil {
				return err
			}

			return uploadFile(cmd.Context(), a, args[0], parentIDOf(parent))
		},
	}
}

// uploadFile sends one local file into the folder identified by parentID.
// Shared with watch mode.
func uploadFile(ctx context.Context, a *app, localPath string, parentID *string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", localPath, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", localPath)
	}

	name := filepath.Base(localPath)
	renderer := newProgressRenderer("uploading " + name)

	result, err := a.transfer.Upload(ctx, parentID, name, f, info.Size(), renderer.Tick)
	renderer.Done()

	if err != nil {
		return err
	}

	if !result.OK {
		return fieldErrors(fmt.Sprintf("upload of %s rejected (status %d)", name, result.Status),
			&api.Response{Status: result.Status, Data: result.Data})
	}

	a.cache.AddItem(*result.Item)
	statusf("Uploaded %s (%s)\n", result.Item.Name, formatSize(result.Bytes))

	return nil
}

func newGetCmd() *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "get <remote-path>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if err := a.withJournal(); err != nil {
				return err
			}
			defer a.closeJournal()

			item, err := a.resolveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if item == nil || !item.IsFile {
				return fmt.Errorf("%s: not a file", args[0])
			}

			renderer := newProgressRenderer("downloading " + item.Name)

			result, err := a.transfer.Download(cmd.Context(), *item, destDir, renderer.Tick)
			renderer.Done()

			if err != nil {
				return err
			}

			if !result.OK {
				return fieldErrors(fmt.Sprintf("download of %s rejected (status %d)", item.Name, result.Status),
					&api.Response{Status: result.Status, Data: result.Data})
			}

			statusf("Saved %s (%s)\n", result.Path, formatSize(result.Bytes))

			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "output-dir", "o", ".", "destination directory")

	return cmd
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <path> <dest-folder>",
		Short: "Move a file or folder",
		Args:  cobra.ExactArgs(2),
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
				return fmt.Errorf("the root folder cannot be moved")
			}

			dest, err := a.resolveFolder(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			updated, resp, err := a.client.Move(cmd.Context(), item.ID, parentIDOf(dest), item.Name)
			if err != nil {
				return err
			}

			if updated == nil {
				return fieldErrors("move failed", resp)
			}

			a.cache.UpdateItem(item.ID, item.Parent, *updated)
			statusf("Moved %s to %s\n", args[0], args[1])

			return nil
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <new-name>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(2),
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
				return fmt.Errorf("the root folder cannot be renamed")
			}

			updated, resp, err := a.client.Rename(cmd.Context(), item.ID, item.Parent, args[1])
			if err != nil {
				return err
			}

			if updated == nil {
				return fieldErrors("rename failed", resp)
			}

			a.cache.UpdateItem(item.ID, item.Parent, *updated)
			statusf("Renamed %s to %s\n", args[0], updated.Name)

			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or folder",
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
				return fmt.Errorf("the root folder cannot be deleted")
			}

			resp, err := a.client.Delete(cmd.Context(), item.ID)
			if err != nil {
				return err
			}

			if !resp.OK {
				return fieldErrors("delete failed", resp)
			}

			a.cache.RemoveItem(*item)
			statusf("Deleted %s\n", args[0])

			return nil
		},
	}
}
