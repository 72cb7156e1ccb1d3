package cmd

import (
	"fmt"
	"log/slog"
)

// runInit runs migrations and prepares the configured collection. All
// of that happens inside app.Setup; init exists so operators can do it
// explicitly before the first seed.
func runInit(args []string, logger *slog.Logger) error {
	if len(args) > 0 {
		return fmt.Errorf("init takes no arguments")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.Store.CollectionStats(ctx, a.Config.Collection)
	if err != nil {
		return err
	}
	fmt.Printf("Collection %q ready: %d records, %d dimensions\n",
		info.Name, info.Records, info.Dimension)
	return nil
}
