package ledger

const DefaultPageSize = 25

type Page[T any] struct {
	Rows       []T `json:"-"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// Paginate slices rows that already carry their balances. Page numbers start at 1;
// a page past the end is empty.
func Paginate[T any](rows []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(rows)
	pages := total / size
	if total%size != 0 {
		pages++
	}

	// Compare before multiplying or adding so huge inputs cannot overflow.
	start := total
	if page-1 <= total/size {
		start = (page - 1) * size
		if start > total {
			start = total
		}
	}
	end := total
	if total-start > size {
		end = start + size
	}

	return Page[T]{
		Rows:       rows[start:end],
		Page:       page,
		PageSize:   size,
		TotalRows:  total,
		TotalPages: pages,
	}
}

// DateGroup tells the renderer which day band a row belongs to.
type DateGroup struct {
	DateKey string `json:"date_key"`
	Index   int    `json:"index"`
	Slot    int    `json:"slot"`
	First   bool   `json:"first"`
}

// DateGroups numbers consecutive runs of the same day in display order and assigns
// each run a colour slot cycling through slots.
func DateGroups(rows []Row, slots int) []DateGroup {
	if slots <= 0 {
		slots = 2
	}
	out := make([]DateGroup, len(rows))
	index := -1
	last := ""
	for i, r := range rows {
		key := r.Delivery.Key.DateKey
		first := i == 0 || key != last
		if first {
			index++
			last = key
		}
		out[i] = DateGroup{DateKey: key, Index: index, Slot: index % slots, First: first}
	}
	return out
}
