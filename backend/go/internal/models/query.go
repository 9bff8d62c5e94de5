package models

// QueryRequest 是发往数据仓库服务的查询请求。
// Sources 的键是查询类型（例如 user_data、login_log），值是该类型的查询参数。
type QueryRequest struct {
	Sources   map[string]interface{} `json:"sources"`
	CRMUserID *int64                 `json:"crm_user_id,omitempty"`
}

// QueryTypes 返回请求中的查询类型。
func (r *QueryRequest) QueryTypes() []string {
	types := make([]string, 0, len(r.Sources))
	for k := range r.Sources {
		types = append(types, k)
	}
	return types
}

// Table 是一种查询类型的结果集。
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// QueryResult 是数据仓库服务的响应。
type QueryResult struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Data     map[string]*Table      `json:"data"`
	SQLInfo  interface{}            `json:"sql_info,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RowCount 返回所有结果集的总行数。
func (r *QueryResult) RowCount() int {
	n := 0
	for _, t := range r.Data {
		if t != nil {
			n += len(t.Rows)
		}
	}
	return n
}
