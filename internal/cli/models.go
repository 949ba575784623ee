// Copyright (c) 2025 Quill Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command.

package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/quillcli/quill/internal/config"
	"github.com/quillcli/quill/internal/provider"
)

// RunModels handles the models command. Local models are always
// attempted; cloud models are listed only when an API key is set or
// --cloud is passed.
func RunModels(ctx context.Context, cfg *config.Config, args *Args) error {
	applyOverrides(cfg, args)

	p, err := provider.New(cfg)
	if err != nil {
		return err
	}

	showLocal := !args.Cloud
	showCloud := args.Cloud || (p.Cloud().IsConfigured() && !args.Local)

	if showLocal {
		if err := printLocalModels(ctx, p); err != nil && !showCloud {
			return err
		}
	}

	if showCloud {
		if err := printCloudModels(ctx, p); err != nil {
			return err
		}
	}

	return nil
}

func printLocalModels(ctx context.Context, p *provider.Provider) error {
	models, err := p.Local().ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "local: %s\n", FriendlyError(err))
		return err
	}

	if len(models) == 0 {
		fmt.Println("No local models installed. Pull one with 'ollama pull <model>'.")
		return nil
	}

	fmt.Println("Local models:")
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tSIZE\tFAMILY")
	for _, m := range models {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", m.Name, formatBytes(m.Size), m.Details.Family)
	}
	return w.Flush()
}

func printCloudModels(ctx context.Context, p *provider.Provider) error {
	models, err := p.Cloud().ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloud: %s\n", FriendlyError(err))
		return err
	}

	fmt.Println("Cloud models:")
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCONTEXT")
	for _, m := range models {
		fmt.Fprintf(w, "  %s\t%d\n", m.ID, m.ContextSize)
	}
	return w.Flush()
}

// formatBytes renders a byte count as a human-readable size.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
