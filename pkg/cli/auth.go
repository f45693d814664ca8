package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mchmarny/benchbase/pkg/auth"
	"github.com/urfave/cli/v3"
)

var (
	authDeleteFlag = &cli.BoolFlag{
		Name:  "delete",
		Usage: "Remove the stored API key",
	}

	authCmd = &cli.Command{
		Name:   "auth",
		Usage:  "Store the Airtable API key in the OS keychain",
		Flags:  []cli.Flag{authDeleteFlag},
		Action: cmdAuth,
	}
)

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	store := auth.NewTokenStore(cfg.Dir)
	w := writer(cmd)

	if cmd.Bool(authDeleteFlag.Name) {
		if err := store.Delete(); err != nil {
			return fmt.Errorf("deleting API key: %w", err)
		}
		fmt.Fprintln(w, "API key removed")
		return nil
	}

	var r io.Reader = os.Stdin
	if cmd.Root().Reader != nil {
		r = cmd.Root().Reader
	}

	fmt.Fprint(w, "Paste the Airtable API key and hit enter:\n>")
	key, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading user input: %w", err)
	}

	if err := store.Save(strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}

	fmt.Fprintln(w, "\nAPI key saved")
	return nil
}
