// Package retrieval embeds sample feature text and ranks reference samples
// by cosine similarity. The embedding endpoint is treated as an opaque,
// deterministic function; the index itself is pure in-memory math.
package retrieval
