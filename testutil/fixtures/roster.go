// 测试数据工厂: 成员、提示词与项目.
package fixtures

import (
	"github.com/frogteam/frogteam/agent/roster"
)

// 任务总结提示词内容
const TaskSummaryText = "summarize what you changed and where"

// LeadSetup 返回 lead-architect 成员
func LeadSetup() roster.Setup {
	return roster.Setup{Name: "Arch", Purpose: roster.PurposeLeadArchitect, Model: "gpt-4o", APIKey: "test-key"}
}

// DevSetup 返回 developer 成员
func DevSetup() roster.Setup {
	return roster.Setup{Name: "Dev", Purpose: "developer", Model: "gpt-4o", APIKey: "test-key"}
}

// QASetup 返回 tester 成员
func QASetup() roster.Setup {
	return roster.Setup{Name: "QA", Purpose: "tester", Model: "gpt-4o-mini", APIKey: "test-key"}
}

// Setups 返回完整团队
func Setups() []roster.Setup {
	return []roster.Setup{LeadSetup(), DevSetup(), QASetup()}
}

// Prompts 返回覆盖所有成员的系统提示词
func Prompts() []roster.Prompt {
	all := roster.ModelList{"*"}
	return []roster.Prompt{
		{ID: "p-lead", Role: roster.RoleSystem, Category: roster.PurposeLeadArchitect, Models: all, Active: true,
			Content: "You lead the team:\n${members}Delegate with getQueueMemberAssignmentApi."},
		{ID: "p-dev", Role: roster.RoleSystem, Category: "developer", Models: all, Active: true,
			Content: "You are ${name}, a developer. Asked by ${caller}.\n${file_list}"},
		{ID: "p-qa", Role: roster.RoleSystem, Category: "tester", Models: all, Active: true,
			Content: "You are ${name}, a tester."},
		{ID: "p-eng", Role: roster.RoleSystem, Category: "lead-engineer", Models: all, Active: true,
			Content: "You are ${name}."},
		{ID: "p-sum", Role: roster.RoleSystem, Category: roster.CategoryTaskSummary, Models: all, Active: true,
			Content: TaskSummaryText},
	}
}

// Project 返回示例项目
func Project() roster.Project {
	return roster.Project{Name: "web", Directory: "src/web", Problem: "build the landing page"}
}

// Registries 返回装载了上述数据的静态注册表
func Registries() (*roster.SetupRegistry, *roster.PromptRegistry, *roster.ProjectRegistry) {
	return roster.NewStaticSetupRegistry(Setups()...),
		roster.NewStaticPromptRegistry(Prompts()...),
		roster.NewStaticProjectRegistry(Project())
}
