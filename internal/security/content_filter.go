package security

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// 规则分类
const (
	CategorySQLInjection = "sql_injection"
	CategorySQLComment   = "sql_comment"
	CategoryXSS          = "xss"
	CategoryCodeExec     = "code_exec"
)

// Rule 一条攻击特征规则
type Rule struct {
	Name     string
	Category string
	Pattern  *regexp.Regexp
}

// DefaultRules 返回默认的有序规则列表
func DefaultRules() []Rule {
	return []Rule{
		{Name: "union_select", Category: CategorySQLInjection, Pattern: regexp.MustCompile(`(?is)\bunion\b.*\bselect\b`)},
		{Name: "drop_table", Category: CategorySQLInjection, Pattern: regexp.MustCompile(`(?i)\bdrop\s+table\b`)},
		{Name: "insert_into", Category: CategorySQLInjection, Pattern: regexp.MustCompile(`(?i)\binsert\s+into\b`)},
		{Name: "delete_from", Category: CategorySQLInjection, Pattern: regexp.MustCompile(`(?i)\bdelete\s+from\b`)},
		{Name: "tautology", Category: CategorySQLComment, Pattern: regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`)},
		{Name: "comment_terminator", Category: CategorySQLComment, Pattern: regexp.MustCompile(`(?:'|;)\s*--`)},
		{Name: "block_comment", Category: CategorySQLComment, Pattern: regexp.MustCompile(`(?s)/\*.*?\*/`)},
		{Name: "script_tag", Category: CategoryXSS, Pattern: regexp.MustCompile(`(?i)<\s*script\b`)},
		{Name: "javascript_uri", Category: CategoryXSS, Pattern: regexp.MustCompile(`(?i)\bjavascript\s*:`)},
		{Name: "eval_call", Category: CategoryCodeExec, Pattern: regexp.MustCompile(`(?i)\beval\s*\(`)},
		{Name: "exec_call", Category: CategoryCodeExec, Pattern: regexp.MustCompile(`(?i)\bexec\s*\(`)},
	}
}

// ContentFilter 按顺序匹配规则
type ContentFilter struct {
	rules []Rule
}

// NewContentFilter 创建内容过滤器，rules 为空时使用默认规则
func NewContentFilter(rules []Rule) *ContentFilter {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &ContentFilter{rules: rules}
}

// Match 返回第一条命中的规则
func (cf *ContentFilter) Match(content string) (Rule, bool) {
	if content == "" {
		return Rule{}, false
	}
	for _, rule := range cf.rules {
		if rule.Pattern.MatchString(content) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules 返回规则列表副本
func (cf *ContentFilter) Rules() []Rule {
	out := make([]Rule, len(cf.rules))
	copy(out, cf.rules)
	return out
}

// SerializeRequest 将解码后的查询参数与请求体拼接为待检测文本
//
// 参数按键排序，保证结果稳定。合法 JSON 请求体会先解码再以不转义 HTML 的方式重新编码，
// 使 \u003c 一类的转义还原为原字符；其他请求体按原始字节检测。
func SerializeRequest(query url.Values, body []byte) string {
	var b strings.Builder

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range query[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}

	if len(body) > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.Write(normalizeBody(body))
	}
	return b.String()
}

// normalizeBody 展开 JSON 字符串中的转义序列
func normalizeBody(body []byte) []byte {
	if !json.Valid(body) {
		return body
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return body
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
