package agent

import (
	"context"
	"errors"
	"fmt"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/calculator"
	"crm-agent-go/pkg/log"

	"golang.org/x/sync/errgroup"
)

// Orchestrator 根据意图与 persona 选择并并发执行工具。
type Orchestrator struct {
	crm       CRMReader
	knowledge KnowledgeSearcher
	graph     GraphSearcher
	documents DocumentSearcher
	cfg       Config
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(crm CRMReader, knowledge KnowledgeSearcher, graph GraphSearcher, documents DocumentSearcher, cfg Config) *Orchestrator {
	return &Orchestrator{crm: crm, knowledge: knowledge, graph: graph, documents: documents, cfg: cfg}
}

type plannedCall struct {
	call model.ToolCall
	run  func(ctx context.Context) error
}

// Run 执行一轮工具调用并等待全部结束（或超时）。
// 单个工具的失败只会被记录，不会影响其他工具，也不会让 Run 返回错误。
func (o *Orchestrator) Run(ctx context.Context, query string, intent QueryIntent, persona *model.Persona) *Outcome {
	out := &Outcome{Persona: persona, Failures: make(map[string]error)}
	var knowledge, graph []model.SearchResult

	plan := o.plan(query, intent, persona, &out.Results)
	plan = append(plan,
		plannedCall{
			call: model.ToolCall{Name: ToolKnowledgeSearch, Args: map[string]any{"query": query, "limit": o.cfg.KnowledgeTopK}},
			run: func(ctx context.Context) error {
				res, err := o.knowledge.HybridSearch(ctx, query, o.cfg.KnowledgeTopK)
				knowledge = res
				return err
			},
		},
		plannedCall{
			call: model.ToolCall{Name: ToolGraphSearch, Args: map[string]any{"query": query, "limit": o.cfg.GraphTopK}},
			run: func(ctx context.Context) error {
				graph = o.graphSearch(ctx, query)
				return nil
			},
		},
	)

	errs := make([]error, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plan {
		g.Go(func() error {
			if err := p.run(gctx); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range plan {
		out.Calls = append(out.Calls, p.call)
		if errs[i] != nil {
			out.Failures[p.call.Name] = errs[i]
			log.Warnf("[Orchestrator] 工具 %s 执行失败，已跳过: %v", p.call.Name, errs[i])
		}
	}

	out.Results.Snippets = append(append(out.Results.Snippets, knowledge...), graph...)
	for _, r := range knowledge {
		out.Sources = append(out.Sources, sourceOf(r, OriginKnowledge))
	}
	for _, r := range graph {
		out.Sources = append(out.Sources, sourceOf(r, OriginGraph))
	}
	log.Infof("[Orchestrator] 完成 %d 个工具调用，失败 %d 个，片段 %d 条", len(out.Calls), len(out.Failures), len(out.Results.Snippets))
	return out
}

func sourceOf(r model.SearchResult, origin string) model.SourceRef {
	return model.SourceRef{DocumentID: r.DocumentID, Title: r.Title, Score: r.Score, Origin: origin}
}

// plan 决定本轮需要调用的工具。CRM 工具受 persona 约束，文档检索与计算器不受约束。
// 每个工具只写入 res 中属于自己的字段。
func (o *Orchestrator) plan(query string, intent QueryIntent, persona *model.Persona, res *ToolResults) []plannedCall {
	var plan []plannedCall
	add := func(name string, args map[string]any, run func(ctx context.Context) error) {
		plan = append(plan, plannedCall{call: model.ToolCall{Name: name, Args: args}, run: run})
	}

	switch {
	case persona.IsCustomer():
		id := persona.InternalID
		args := map[string]any{"customerNumber": persona.Number}
		if intent.IsPolicyQuery {
			add(ToolCustomerPolicies, args, func(ctx context.Context) (err error) {
				res.Policies, err = o.crm.CustomerPolicies(ctx, id)
				return err
			})
		}
		if intent.IsClaimQuery {
			add(ToolCustomerClaims, args, func(ctx context.Context) (err error) {
				res.Claims, err = o.crm.CustomerClaims(ctx, id)
				return err
			})
		}
		if intent.IsInteractionQuery {
			add(ToolCustomerInteractions, args, func(ctx context.Context) (err error) {
				res.Interactions, err = o.crm.CustomerInteractions(ctx, id, o.cfg.InteractionLimit)
				return err
			})
		}
		if intent.IsProfileQuery {
			add(ToolCustomerProfile, args, func(ctx context.Context) error {
				customer, err := unwrapLookup(o.crm.CustomerByNumber(ctx, persona.Number))
				if err != nil {
					return err
				}
				res.Profile = &Profile{Customer: customer}
				return nil
			})
		}
		if intent.IsAdvisorRecommendationQuery {
			spec := SpecializationHint(query)
			recArgs := map[string]any{"limit": o.cfg.AdvisorTopN}
			if spec != "" {
				recArgs["specialization"] = spec
			}
			add(ToolRecommendAdvisors, recArgs, func(ctx context.Context) (err error) {
				res.Advisors, err = o.crm.RecommendAdvisors(ctx, spec, o.cfg.AdvisorTopN)
				return err
			})
		}
	case persona.IsAdvisor():
		id := persona.InternalID
		args := map[string]any{"advisorNumber": persona.Number}
		if intent.IsTaskQuery {
			add(ToolAdvisorTasks, args, func(ctx context.Context) (err error) {
				res.Tasks, err = o.crm.AdvisorTasks(ctx, id)
				return err
			})
		}
		if intent.IsProfileQuery {
			add(ToolAdvisorProfile, args, func(ctx context.Context) error {
				advisor, err := unwrapLookup(o.crm.AdvisorByNumber(ctx, persona.Number))
				if err != nil {
					return err
				}
				clients, err := o.crm.AdvisorClients(ctx, id)
				if err != nil {
					log.Warnf("[Orchestrator] 获取顾问 %s 的客户列表失败: %v", persona.Number, err)
				}
				res.Profile = &Profile{Advisor: advisor, Clients: clients}
				return nil
			})
		}
	}

	if intent.IsDocumentQuery {
		add(ToolSearchDocuments, map[string]any{"query": query, "limit": o.cfg.DocumentLimit}, func(ctx context.Context) (err error) {
			res.Documents, err = o.documents.SearchDocuments(ctx, query, o.cfg.DocumentLimit)
			return err
		})
	}

	if intent.IsCalculationQuery {
		if expr, ok := ExtractExpression(query); ok {
			add(ToolCalculate, map[string]any{"expression": expr, "type": string(calculator.Arithmetic)}, func(ctx context.Context) error {
				r, err := calculator.Evaluate(expr, calculator.Arithmetic, nil)
				if err != nil {
					return err
				}
				res.Calculation = &Calculation{Expression: expr, Result: r.Result, Formula: r.Formula}
				return nil
			})
		} else {
			log.Debugf("[Orchestrator] 未能从问句中抽取表达式，跳过计算器")
		}
	}
	return plan
}

var errRecordMissing = errors.New("record not found")

func unwrapLookup[T any](l repository.Lookup[T]) (*T, error) {
	switch l.Status {
	case repository.Found:
		return l.Record, nil
	case repository.NotFound:
		return nil, errRecordMissing
	default:
		return nil, fmt.Errorf("crm lookup: %w", l.Err)
	}
}

type graphResult struct {
	items []model.SearchResult
	err   error
}

// graphSearch 与超时赛跑，超时或失败都返回空列表，保证图谱后端不会拖住整轮对话。
func (o *Orchestrator) graphSearch(ctx context.Context, query string) []model.SearchResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.GraphTimeout)
	defer cancel()

	ch := make(chan graphResult, 1)
	go func() {
		items, err := o.graph.GraphSearch(ctx, query, o.cfg.GraphTopK)
		ch <- graphResult{items: items, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Warnf("[Orchestrator] 图谱检索失败，按空结果处理: %v", r.err)
			return nil
		}
		return r.items
	case <-ctx.Done():
		log.Warnf("[Orchestrator] 图谱检索超时(%s)，按空结果处理", o.cfg.GraphTimeout)
		return nil
	}
}
