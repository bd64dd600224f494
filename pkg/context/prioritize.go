package context

import (
	"math"
	"sort"
	"strings"
	"time"
)

// TypeBonus 一条类型加分规则。
// TaskType 为空表示对所有任务类型生效。规则按顺序匹配，全部累加。
type TypeBonus struct {
	TaskType  string
	ChunkType ChunkType
	Bonus     float64
}

// defaultTypeBonuses 默认类型加分规则表。
var defaultTypeBonuses = []TypeBonus{
	{TaskType: "coding", ChunkType: ChunkTypeFile, Bonus: 20},
	{TaskType: "coding", ChunkType: ChunkTypeError, Bonus: 30},
	{TaskType: "", ChunkType: ChunkTypeSelection, Bonus: 25},
}

// Prioritizer 对上下文块评分并排序。
type Prioritizer struct {
	// Bonuses 类型加分规则表。
	Bonuses []TypeBonus
	// RecencyEnabled 启用时排序键乘以时间衰减因子。
	RecencyEnabled bool

	// now 可注入的时钟，便于测试。
	now func() time.Time
}

// PrioritizerOption 排序器选项
type PrioritizerOption func(*Prioritizer)

// WithRecency 启用新近性衰减
func WithRecency(enabled bool) PrioritizerOption {
	return func(p *Prioritizer) {
		p.RecencyEnabled = enabled
	}
}

// WithBonuses 覆盖类型加分规则表
func WithBonuses(bonuses []TypeBonus) PrioritizerOption {
	return func(p *Prioritizer) {
		p.Bonuses = bonuses
	}
}

// NewPrioritizer 创建排序器
func NewPrioritizer(opts ...PrioritizerOption) *Prioritizer {
	p := &Prioritizer{
		Bonuses: defaultTypeBonuses,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Score 计算块与最近用户消息的相关性分数（0-100）。
//
// 关键词重叠比率乘 50，再按规则表累加类型加分，封顶 100。
func (p *Prioritizer) Score(chunk *Chunk, lastUserMessage, taskType string) float64 {
	score := overlapRatio(chunk.Content, lastUserMessage) * 50

	for _, rule := range p.Bonuses {
		if rule.ChunkType != chunk.Type {
			continue
		}
		if rule.TaskType != "" && rule.TaskType != taskType {
			continue
		}
		score += rule.Bonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Rank 评分并按排序键降序排列块。
//
// 排序键 = priority + relevanceScore×10，启用新近性时乘以
// exp(-ageHours/24)。稳定排序，同分保持插入顺序。
func (p *Prioritizer) Rank(chunks []*Chunk, lastUserMessage, taskType string) []*Chunk {
	for _, c := range chunks {
		c.RelevanceScore = p.Score(c, lastUserMessage, taskType)
	}

	ranked := make([]*Chunk, len(chunks))
	copy(ranked, chunks)

	sort.SliceStable(ranked, func(i, j int) bool {
		return p.rankKey(ranked[i]) > p.rankKey(ranked[j])
	})

	return ranked
}

// rankKey 计算单个块的排序键。
func (p *Prioritizer) rankKey(c *Chunk) float64 {
	key := float64(c.Priority) + c.RelevanceScore*10

	if p.RecencyEnabled && !c.Timestamp.IsZero() {
		ageHours := p.now().Sub(c.Timestamp).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		key *= math.Exp(-ageHours / 24)
	}

	return key
}

// overlapRatio 返回查询关键词在内容中出现的比例（0-1）。
func overlapRatio(content, query string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0.0
	}

	contentSet := make(map[string]struct{})
	for _, token := range tokenize(content) {
		contentSet[token] = struct{}{}
	}

	overlap := 0
	for _, token := range queryTokens {
		if _, exists := contentSet[token]; exists {
			overlap++
		}
	}

	return float64(overlap) / float64(len(queryTokens))
}

// tokenize 将文本分割为小写词元用于比较。
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var current strings.Builder

	for _, r := range text {
		if isTokenChar(r) {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// isTokenChar 返回该字符是否应该是词元的一部分。
func isTokenChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r >= 0x4E00 && r <= 0x9FFF // 中文字符
}
