package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/prashanthpai/smartcache/rules"
)

func newRulesCmd(a *app) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "List and edit caching rules",
		Long: `List and edit the ordered caching rules. The first rule matching a query
decides its TTL; queries no rule matches are not cached.`,
	}

	rulesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tKIND\tTTL\tVALUES")
			for i, r := range s.Ruleset.Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, r.Kind(), r.TTL(), strings.Join(r.Values(), ","))
			}
			return w.Flush()
		},
	}

	var (
		kind     string
		values   []string
		ttl      string
		position int
	)
	rulesAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule",
		Long: `Add a rule at the given position, or at the end.

Examples:
  smartcachectl rules add --kind tablesAny --values books,authors --ttl 5m
  smartcachectl rules add --kind queryIds --values 3632233996 --ttl 60
  smartcachectl rules add --kind regex --values 'SELECT .* FROM books.*' --ttl 1h --position 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := rules.ParseKind(kind)
			if err != nil {
				return err
			}
			d, err := parseTTL(ttl)
			if err != nil {
				return err
			}
			vs := values
			if k != rules.Regex {
				vs = splitValues(values)
			}
			r, err := rules.New(k, vs, d)
			if err != nil {
				return err
			}

			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			rs := s.Ruleset.Rules()
			if position < 0 || position > len(rs) {
				position = len(rs)
			}
			rs = append(rs[:position], append([]rules.Rule{r}, rs[position:]...)...)
			s.Ruleset = rules.NewRuleset(rs...)
			if err := a.save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added rule %d: %s\n", position, r)
			return nil
		},
	}
	rulesAddCmd.Flags().StringVar(&kind, "kind", "", "match kind: passthrough, tables, tablesAny, tablesAll, regex or queryIds")
	rulesAddCmd.Flags().StringArrayVar(&values, "values", nil, "comma separated table names or query ids, or a single regex")
	rulesAddCmd.Flags().StringVar(&ttl, "ttl", "", "cache TTL as a duration or seconds; 0 disables caching")
	rulesAddCmd.Flags().IntVar(&position, "position", -1, "insert before this index; default appends")
	_ = rulesAddCmd.MarkFlagRequired("kind")
	_ = rulesAddCmd.MarkFlagRequired("ttl")

	rulesRemoveCmd := &cobra.Command{
		Use:   "remove [index]",
		Short: "Remove the rule at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}

			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			rs := s.Ruleset.Rules()
			if i < 0 || i >= len(rs) {
				return fmt.Errorf("index %d out of range, %d rules", i, len(rs))
			}
			removed := rs[i]
			s.Ruleset = rules.NewRuleset(append(rs[:i], rs[i+1:]...)...)
			if err := a.save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed rule %d: %s\n", i, removed)
			return nil
		},
	}

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesRemoveCmd)
	return rulesCmd
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// parseTTL accepts the same forms as the ttl field of a rule document.
func parseTTL(s string) (time.Duration, error) {
	var ttl rules.TTL
	if err := json.Unmarshal([]byte(strconv.Quote(s)), &ttl); err != nil {
		return 0, err
	}
	return time.Duration(ttl), nil
}
