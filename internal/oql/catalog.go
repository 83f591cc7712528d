package oql

// CatalogQuery is a predefined query shipped with the engine.
type CatalogQuery struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Query       string `json:"query" yaml:"query"`
}

// Category groups related catalog queries.
type Category struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Queries []CatalogQuery `json:"queries" yaml:"queries"`
}

var catalog = []Category{
	{
		ID:   "strings",
		Name: "Strings",
		Queries: []CatalogQuery{
			{
				ID:          "long-strings",
				Name:        "Long strings",
				Description: "Strings whose content is at least 100 characters long",
				Query:       `select s from java.lang.String s where length(s) >= 100`,
			},
			{
				ID:          "duplicate-strings",
				Name:        "Duplicate strings",
				Description: "String contents that occur more than once, with their number of copies",
				Query: `var seen = {};
heap.forEachObject(function(s) {
  var k = s.toString();
  seen[k] = (seen[k] || 0) + 1;
}, "java.lang.String", false);
filter(map(seen, "{ content: index, copies: it }"), "it.copies > 1")`,
			},
		},
	},
	{
		ID:   "arrays",
		Name: "Arrays",
		Queries: []CatalogQuery{
			{
				ID:          "big-int-arrays",
				Name:        "Big int arrays",
				Description: "int[] arrays with at least 256 elements",
				Query:       `select a from [I a where a.length >= 256`,
			},
			{
				ID:          "big-byte-arrays",
				Name:        "Big byte arrays",
				Description: "byte[] arrays with at least 1024 elements",
				Query:       `select a from [B a where a.length >= 1024`,
			},
			{
				ID:          "sparse-hash-tables",
				Name:        "Sparse hash tables",
				Description: "HashMap tables with less than a quarter of their buckets in use",
				Query:       `select m from java.util.HashMap m where m.table != null && count(m.table, "it != null") * 4 < m.table.length`,
			},
			{
				ID:          "largest-arrays",
				Name:        "Largest primitive arrays",
				Description: "The ten largest primitive arrays by shallow size",
				Query: `top(concat(heap.objects("[B"), heap.objects("[C"), heap.objects("[I"), heap.objects("[J")),
    "sizeof(lhs) - sizeof(rhs)", 10)`,
			},
		},
	},
	{
		ID:   "collections",
		Name: "Collections",
		Queries: []CatalogQuery{
			{
				ID:          "empty-hashmaps",
				Name:        "Empty hash maps",
				Description: "HashMap instances holding no entries",
				Query:       `select m from java.util.HashMap m where m.size == 0`,
			},
			{
				ID:          "hashmap-entries",
				Name:        "Hash map entries",
				Description: "Key and value of every HashMap entry",
				Query: `select map(filter(m.table, "it != null"), "{ key: it.key.toString(), value: it.value.toString() }")
from java.util.HashMap m`,
			},
			{
				ID:          "system-properties",
				Name:        "System properties",
				Description: "Key/value pairs of java.lang.System.props",
				Query: `select map(filter(heap.findClass("java.lang.System").props.table, "it != null"),
    "it.key.toString() + ' = ' + it.value.toString()")`,
			},
		},
	},
	{
		ID:   "memory",
		Name: "Memory",
		Queries: []CatalogQuery{
			{
				ID:          "class-histogram",
				Name:        "Class histogram",
				Description: "Classes with instances, ordered by instance count",
				Query: `sort(map(filter(heap.classes(), "count(it.instances()) > 0"),
    "{ name: it.name, count: count(it.instances()) }"), "rhs.count - lhs.count")`,
			},
			{
				ID:          "retained-top",
				Name:        "Biggest retained objects",
				Description: "The ten objects retaining the most memory",
				Query:       `top(heap.objects("java.lang.Object"), "rsizeof(lhs) - rsizeof(rhs)", 10)`,
			},
			{
				ID:          "finalizables",
				Name:        "Objects pending finalization",
				Description: "Referents of java.lang.ref.Finalizer instances",
				Query:       `select heap.finalizables()`,
			},
		},
	},
	{
		ID:   "threads",
		Name: "Threads and class loaders",
		Queries: []CatalogQuery{
			{
				ID:          "threads",
				Name:        "Threads",
				Description: "Name, priority and daemon flag of every thread",
				Query:       `select { name: t.name.toString(), priority: t.priority, daemon: t.daemon } from instanceof java.lang.Thread t`,
			},
			{
				ID:          "class-loaders",
				Name:        "Class loader types",
				Description: "Distinct class loader classes",
				Query:       `select unique(map(heap.objects("java.lang.ClassLoader"), "it.clazz.name"))`,
			},
			{
				ID:          "gc-roots",
				Name:        "GC roots by kind",
				Description: "Number of GC roots of each kind",
				Query: `var kinds = {};
heap.roots().toArray().forEach(function(r) { kinds[r.kind] = (kinds[r.kind] || 0) + 1; });
kinds`,
			},
		},
	},
}

// Catalog returns the predefined queries grouped by category.
func Catalog() []Category {
	out := make([]Category, len(catalog))
	for i, c := range catalog {
		out[i] = c
		out[i].Queries = append([]CatalogQuery(nil), c.Queries...)
	}
	return out
}

// FindCatalogQuery looks up a predefined query by ID.
func FindCatalogQuery(id string) (CatalogQuery, bool) {
	for _, c := range catalog {
		for _, q := range c.Queries {
			if q.ID == id {
				return q, true
			}
		}
	}
	return CatalogQuery{}, false
}
