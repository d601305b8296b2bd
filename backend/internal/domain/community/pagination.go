package community

// 分页默认值与上限，社区列表与评论列表共用。
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
	TrendingSize    = 20
	RecentComments  = 20
)

// ClampPageSize 把每页条数压到 [1,MaxPageSize]。
func ClampPageSize(pageSize int) int {
	if pageSize < 1 {
		return 1
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

// NormalizePage 把页码压到 [1,∞)；pageSize 为 0 视为未提供，取默认值。
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	return page, ClampPageSize(pageSize)
}

// Offset 计算 (page-1)*pageSize。
func Offset(page, pageSize int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}
