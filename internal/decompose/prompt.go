package decompose

import "fmt"

// planningPrompt is the prompt template for plan acquisition.
const planningPrompt = `Break the following task into the subtasks needed to complete it. Each subtask will be handed to a single specialist worker.

Task:
%s

Guidelines:
- Every subtask must be atomic and actionable: one worker can finish it without further breakdown
- Give each subtask a role describing the specialist best suited to it (e.g. "Data Analyst", "Technical Writer")
- Only add a dependency when a subtask genuinely needs another subtask's result
- Set enableAugmentedCapability to true only for subtasks that need current external information such as web search
- Use short ids ("task1", "task2", ...) and reference them in dependsOn
- Use an empty array [] for dependsOn if there are no dependencies
- Do not create subtasks that only summarize other subtasks; the results are combined afterwards

Return exactly one fenced json block with this structure and no other JSON:
` + "```json" + `
{
  "subTasks": [
    {
      "id": "task1",
      "taskDescription": "Short description of the subtask",
      "agentRole": "Role of the specialist worker",
      "agentObjective": "What the worker is trying to achieve",
      "agentTaskPrompt": "Complete instructions for the worker",
      "enableAugmentedCapability": false,
      "dependsOn": []
    }
  ]
}
` + "```"

// BuildPlanningPrompt returns the planning request for task.
func BuildPlanningPrompt(task string) string {
	return fmt.Sprintf(planningPrompt, task)
}
