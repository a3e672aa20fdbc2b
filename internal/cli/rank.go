package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rushteam/outrank/config"
	"github.com/rushteam/outrank/core"
	"github.com/rushteam/outrank/pipeline"
	"github.com/rushteam/outrank/recall"
	"github.com/rushteam/outrank/store"
	"github.com/rushteam/outrank/workflow"
)

type rankOptions struct {
	catalogs     []string
	configPath   string
	pipelinePath string
	topK         int
	threshold    float64
	weights      []string
	maxDistance  float64
	lat, lon     float64
	filter       string
	redisAddr    string
	jsonOut      bool
}

func newRankCmd() *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:   "rank [query]",
		Short: "Retrieve and rank candidates for a query",
		Long: `Retrieve candidates from the catalogs, relaxing the similarity threshold when
nothing matches, then rank them with ELECTRE III.

Examples:
  outrank rank --catalog hcm.json "bun bo hue"
  outrank rank --catalog a.json --catalog b.json --weight food=2 --weight price=1 "pho"
  outrank rank --catalog hcm.json --max-distance 3 --lat 10.7769 --lon 106.7009 "com tam"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runRank(cmd, opts, query)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.catalogs, "catalog", nil, "JSON catalog snapshot (repeatable)")
	f.StringVar(&opts.configPath, "config", "", "settings YAML file")
	f.StringVar(&opts.pipelinePath, "pipeline", "", "pipeline YAML file replacing the default stages")
	f.IntVar(&opts.topK, "top-k", 0, "number of results (default from settings)")
	f.Float64Var(&opts.threshold, "threshold", 0, "initial similarity threshold (default from settings)")
	f.StringArrayVar(&opts.weights, "weight", nil, "criterion weight as name=value (repeatable)")
	f.Float64Var(&opts.maxDistance, "max-distance", 0, "preferred radius in km, enables the distance criterion")
	f.Float64Var(&opts.lat, "lat", 0, "reference latitude")
	f.Float64Var(&opts.lon, "lon", 0, "reference longitude")
	f.StringVar(&opts.filter, "filter", "", "category filter, e.g. a city")
	f.StringVar(&opts.redisAddr, "redis", "", "redis address for the search cache (default in-memory)")
	f.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func runRank(cmd *cobra.Command, opts rankOptions, query string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.redisAddr != "" {
		s.Cache.RedisAddr = opts.redisAddr
	}
	level, err := config.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	searches := make([]core.SimilaritySearch, 0, len(opts.catalogs))
	for _, path := range opts.catalogs {
		c, err := store.LoadCatalog(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		searches = append(searches, c)
	}

	cache, err := openCache(ctx, s)
	if err != nil {
		return err
	}
	defer cache.Close()

	wopts := []workflow.Option{
		workflow.WithSettings(s),
		workflow.WithLogger(logger),
		workflow.WithCache(cache),
	}
	if opts.pipelinePath != "" {
		pc, err := pipeline.LoadFromYAML(opts.pipelinePath)
		if err != nil {
			return err
		}
		stages, err := workflow.StagesFromConfig(pc, s, cache)
		if err != nil {
			return err
		}
		wopts = append(wopts, workflow.WithStages(stages...))
	}

	o, err := workflow.New(recall.NewFanout(searches...), wopts...)
	if err != nil {
		return err
	}

	req := o.NewRequest(query)
	req.Filter = opts.filter
	if opts.topK > 0 {
		req.TopK = opts.topK
	}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = opts.threshold
	}
	if req.Weights, err = parseWeights(opts.weights); err != nil {
		return err
	}
	if cmd.Flags().Changed("max-distance") {
		req.Distance = &core.DistancePreference{
			MaxDistanceKm: opts.maxDistance,
			Reference:     core.GeoPoint{Lat: opts.lat, Lon: opts.lon},
		}
	}

	results, err := o.Recommend(ctx, req)
	if err != nil {
		if core.IsEmptyCandidateSet(err) {
			return fmt.Errorf("no candidates matched %q, try a broader query or a lower --threshold", query)
		}
		return err
	}
	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printTable(cmd.OutOrStdout(), results)
}

// openCache 配置了 redis 地址时连接 redis，否则使用内存缓存。
func openCache(ctx context.Context, s *config.Settings) (core.Store, error) {
	if s.Cache.RedisAddr == "" {
		return store.NewMemoryStore(), nil
	}
	rs, err := store.NewRedisStore(ctx, s.Cache.RedisAddr, s.Cache.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", s.Cache.RedisAddr, err)
	}
	return rs, nil
}

// parseWeights 解析 name=value 形式的权重。
func parseWeights(values []string) (map[string]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(values))
	for _, kv := range values {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, core.NewConfigError(fmt.Sprintf("weight %q must be name=value", kv))
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, core.NewConfigError(fmt.Sprintf("weight %q: %v", kv, err))
		}
		out[name] = w
	}
	return out, nil
}

func printTable(w io.Writer, results []core.RankingResult) error {
	criteria := scoreColumns(results)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := append([]string{"RANK", "ID", "NAME", "NET"}, upper(criteria)...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Rank),
			r.CandidateID,
			r.Name,
			strconv.FormatFloat(r.NetCredibility, 'f', 3, 64),
		}
		for _, c := range criteria {
			v, ok := r.Scores[c]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// scoreColumns 返回所有结果中出现过的维度，按名称排序。
func scoreColumns(results []core.RankingResult) []string {
	seen := map[string]struct{}{}
	for _, r := range results {
		for c := range r.Scores {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
