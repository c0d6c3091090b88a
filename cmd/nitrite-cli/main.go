package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	nitrite "github.com/nitrited/nitrite"
	"github.com/nitrited/nitrite/pkg/collection"
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/log"
	"github.com/nitrited/nitrite/pkg/value"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nitrite-cli",
	Short: "nitrite-cli - inspect and exercise an embedded nitrite database",
	Long: `nitrite-cli opens a nitrite database and runs one operation against
a collection: insert a document, find matches, manage an index, or print
collection and R-tree statistics.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./nitrite-data", "Data directory for persistent storage")
	rootCmd.PersistentFlags().Bool("in-memory", false, "Use an in-memory database instead of persistent storage")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func openDB(cmd *cobra.Command) (*nitrite.Database, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	inMemory, _ := cmd.Flags().GetBool("in-memory")

	opts := nitrite.DefaultOptions()
	if inMemory {
		opts.StorageKind = nitrite.InMemory
	} else {
		opts.StorageKind = nitrite.Persistent
		opts.DataDir = dataDir
	}
	return nitrite.Open(opts)
}

// Collection commands

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Operate on a collection's documents",
}

var collectionInsertCmd = &cobra.Command{
	Use:   "insert NAME",
	Short: "Insert a document into collection NAME",
	Long:  `Reads a JSON document from --doc, or stdin if --doc is omitted, and inserts it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		raw, _ := cmd.Flags().GetString("doc")

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		doc, err := parseDocument(raw)
		if err != nil {
			return err
		}

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		id, err := coll.Insert(doc)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}

		fmt.Printf("inserted _id=%s into %s\n", id.String(), name)
		return nil
	},
}

var collectionGetCmd = &cobra.Command{
	Use:   "get NAME ID",
	Short: "Print the document with the given _id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, idStr := args[0], args[1]

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		id, err := document.ParseID(idStr)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", idStr, err)
		}

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		doc, err := coll.GetByID(id)
		if err != nil {
			return err
		}
		return printDocument(doc)
	},
}

var collectionFindCmd = &cobra.Command{
	Use:   "find NAME",
	Short: "Find documents matching field=value, or every document if omitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		field, _ := cmd.Flags().GetString("field")
		rawVal, _ := cmd.Flags().GetString("value")
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		var f filter.Filter = filter.All()
		if field != "" {
			v, err := parseScalarValue(rawVal)
			if err != nil {
				return err
			}
			f = filter.Eq(field, v)
		}

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		cur, err := coll.Find(f, collectionFindOptions(limit))
		if err != nil {
			return err
		}
		for cur.Next() {
			if err := printDocument(cur.Document()); err != nil {
				return err
			}
		}
		return nil
	},
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove NAME ID",
	Short: "Remove the document with the given _id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, idStr := args[0], args[1]

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		id, err := document.ParseID(idStr)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", idStr, err)
		}

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		doc, err := coll.GetByID(id)
		if err != nil {
			return err
		}
		removed, err := coll.RemoveOne(doc)
		if err != nil {
			return err
		}
		fmt.Printf("removed=%v\n", removed)
		return nil
	},
}

func init() {
	collectionCmd.AddCommand(collectionInsertCmd)
	collectionCmd.AddCommand(collectionGetCmd)
	collectionCmd.AddCommand(collectionFindCmd)
	collectionCmd.AddCommand(collectionRemoveCmd)

	collectionInsertCmd.Flags().String("doc", "", "JSON document to insert (reads stdin if omitted)")

	collectionFindCmd.Flags().String("field", "", "Dotted field path to match (omit to return every document)")
	collectionFindCmd.Flags().String("value", "", "JSON scalar the field must equal")
	collectionFindCmd.Flags().Int("limit", 0, "Maximum number of documents to print (0 = no limit)")
}

// Index commands

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage a collection's secondary indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create NAME FIELD",
	Short: "Create an index on FIELD (non-unique unless --kind says otherwise)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, field := args[0], args[1]
		kind, _ := cmd.Flags().GetString("kind")

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		if err := coll.CreateIndex([]string{field}, index.Kind(kind)); err != nil {
			return err
		}
		fmt.Printf("created %s index on %s.%s\n", kind, name, field)
		return nil
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list NAME",
	Short: "List indexes on a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		for _, d := range coll.ListIndexes() {
			fmt.Printf("%v\t%s\t%s\n", d.Fields, d.Kind, d.State)
		}
		return nil
	},
}

var indexDropCmd = &cobra.Command{
	Use:   "drop NAME FIELD",
	Short: "Drop the index on FIELD",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, field := args[0], args[1]

		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		coll, err := db.Collection(name)
		if err != nil {
			return err
		}
		if err := coll.DropIndex([]string{field}); err != nil {
			return err
		}
		fmt.Printf("dropped index on %s.%s\n", name, field)
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexDropCmd)

	indexCreateCmd.Flags().String("kind", string(index.KindNonUnique), "Index kind: unique, non_unique, full_text, spatial")
}

// Stats command

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collection and R-tree statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		for _, s := range db.CollectionStats() {
			fmt.Printf("collection %-20s documents=%-8d indexes=%v\n", s.Name, s.DocumentCount, s.IndexStates)
		}
		for _, s := range db.RTreeStats() {
			fmt.Printf("rtree %-20s height=%d entries=%d cached_pages=%d hits=%d misses=%d reads=%d writes=%d\n",
				s.IndexName, s.Height, s.TotalEntries, s.CachedPages, s.CacheHits, s.CacheMisses, s.DiskReads, s.DiskWrites)
		}
		return nil
	},
}

// Helpers

func collectionFindOptions(limit int) collection.FindOptions {
	return collection.FindOptions{Limit: limit}
}

func parseDocument(raw string) (*document.Document, error) {
	if raw == "" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return nil, fmt.Errorf("read document from stdin: %w", err)
		}
		raw = string(data)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse document JSON: %w", err)
	}
	doc := document.New()
	for k, v := range m {
		val, err := jsonToValue(v)
		if err != nil {
			return nil, err
		}
		doc.Set(k, val)
	}
	return doc, nil
}

func parseScalarValue(raw string) (value.Value, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return value.String(raw), nil
	}
	return jsonToValue(v)
}

func jsonToValue(v any) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case float64:
		return value.Float64(t), nil
	case string:
		return value.String(t), nil
	case []any:
		arr := make([]value.Value, len(t))
		for i, e := range t {
			ev, err := jsonToValue(e)
			if err != nil {
				return value.Null(), err
			}
			arr[i] = ev
		}
		return value.Array(arr), nil
	case map[string]any:
		d := value.NewDoc()
		for k, e := range t {
			ev, err := jsonToValue(e)
			if err != nil {
				return value.Null(), err
			}
			d.Set(k, ev)
		}
		return value.DocumentValue(d), nil
	default:
		return value.Null(), fmt.Errorf("unsupported JSON value type %T", v)
	}
}

func printDocument(doc *document.Document) error {
	m := map[string]any{}
	for _, f := range doc.Fields() {
		v, _ := doc.Get(f)
		m[f] = v.Raw()
	}
	out, err := json.Marshal(m)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
