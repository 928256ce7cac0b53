package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/entitysync/internal/adapters/channel"
	"github.com/Amund211/entitysync/internal/adapters/gateway"
	"github.com/Amund211/entitysync/internal/app"
	"github.com/Amund211/entitysync/internal/domain"
	"github.com/Amund211/entitysync/internal/logging"
	"github.com/Amund211/entitysync/internal/parsing"
	"github.com/Amund211/entitysync/internal/ports"
	"github.com/Amund211/entitysync/internal/ratelimiting"
	"github.com/spf13/cobra"
)

var (
	baseURL      string
	pushDSN      string
	fetchTimeout time.Duration
	fetchRate    int
	fetchBurst   int
	verbose      bool
)

var models = []string{domain.ModelChannel, domain.ModelLocusBinSet}

func fetchAndPrint[E domain.Entity[int64]](
	ctx context.Context,
	out io.Writer,
	model string,
	decode parsing.Decoder[E],
	toResponse ports.ResponseConverter[E],
	ids []int64,
) error {
	limiter, stop := ratelimiting.NewTokenBucketRateLimiter(ratelimiting.RefillPerSecond(fetchRate), ratelimiting.BurstSize(fetchBurst))
	defer stop()

	entityGateway := gateway.NewHTTPGateway(gateway.NewInstrumentedHTTPClient(fetchTimeout), baseURL, model, decode, limiter)

	m, err := app.NewModel[int64, E](model, max(len(ids), 1))
	if err != nil {
		return err
	}
	coordinator := app.NewRequestCoordinator(m, entityGateway, fetchTimeout)

	entities, err := coordinator.FetchMany(ctx, ids)
	if err != nil {
		return err
	}

	response := make([]any, 0, len(entities))
	for _, entity := range entities {
		response = append(response, toResponse(entity))
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func parseIDArgs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		parsed, err := domain.ParseIDs(json.RawMessage(arg))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", arg, err)
		}
		ids = append(ids, parsed...)
	}
	return ids, nil
}

func get(cmd *cobra.Command, args []string) error {
	if baseURL == "" {
		return fmt.Errorf("no base url provided, use --base-url or ENTITYSYNC_GATEWAY_URL")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ctx := logging.AddToContext(cmd.Context(), logger)

	model := args[0]
	ids, err := parseIDArgs(args[1:])
	if err != nil {
		return err
	}

	switch model {
	case domain.ModelChannel:
		return fetchAndPrint(ctx, cmd.OutOrStdout(), model, parsing.ParseChannel, ports.ChannelToResponse, ids)
	case domain.ModelLocusBinSet:
		return fetchAndPrint(ctx, cmd.OutOrStdout(), model, parsing.ParseLocusBinSet, ports.LocusBinSetToResponse, ids)
	}
	return fmt.Errorf("unknown model %q, expected one of %s", model, strings.Join(models, ", "))
}

func notify(cmd *cobra.Command, args []string) error {
	if pushDSN == "" {
		return fmt.Errorf("no dsn provided, use --dsn or ENTITYSYNC_PUSH_DSN")
	}

	model, kind := args[0], args[1]
	if !slices.Contains(models, model) {
		return fmt.Errorf("unknown model %q, expected one of %s", model, strings.Join(models, ", "))
	}
	if _, err := domain.ParseEventKind(kind); err != nil {
		return err
	}
	id, err := domain.ParseIDString(args[2])
	if err != nil {
		return err
	}

	notification := channel.Notification{
		Model: model,
		Kind:  kind,
		ID:    json.RawMessage(strconv.FormatInt(id, 10)),
	}
	if len(args) == 4 {
		if !json.Valid([]byte(args[3])) {
			return fmt.Errorf("entity is not valid JSON")
		}
		notification.Entity = json.RawMessage(args[3])
	}

	publisher, db, err := channel.NewPostgresPublisher(pushDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := publisher.Publish(cmd.Context(), notification); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published %s %s %d on %s\n", kind, model, id, channel.ChannelName(model))
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	for _, model := range models {
		fmt.Fprintln(cmd.OutOrStdout(), model)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Short: "entitysync operations tool",
		Use:   "entitysyncctl",
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", os.Getenv("ENTITYSYNC_GATEWAY_URL"), "Base url of the remote service")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")

	getCmd := &cobra.Command{
		Use:   "get <model> <id>...",
		Short: "Fetch entities by id and print them as JSON",
		Args:  cobra.MinimumNArgs(2),
		RunE:  get,
	}
	getCmd.Flags().DurationVar(&fetchTimeout, "timeout", 10*time.Second, "Timeout for each fetch")
	getCmd.Flags().IntVar(&fetchRate, "rate", 20, "Fetches per second")
	getCmd.Flags().IntVar(&fetchBurst, "burst", 40, "Maximum burst of fetches")

	notifyCmd := &cobra.Command{
		Use:   "notify <model> <create|update|remove> <id> [entity-json]",
		Short: "Publish a push notification",
		Args:  cobra.RangeArgs(3, 4),
		RunE:  notify,
	}
	notifyCmd.Flags().StringVar(&pushDSN, "dsn", os.Getenv("ENTITYSYNC_PUSH_DSN"), "Postgres connection string")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the known models",
		RunE:  listModels,
	}

	rootCmd.AddCommand(getCmd, notifyCmd, modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
