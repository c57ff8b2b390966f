package llmscore

// WindowScoringPrompt captures the instructions sent to the LLM when rating a
// candidate clip window. Keep updates centralized here so it is easy to tweak
// without hunting through call sites.
const WindowScoringPrompt = `You rate transcript excerpts from long-form videos for their potential as standalone short vertical clips.

Judge the excerpt on:

- Hook strength: does the opening grab attention immediately?
- Payoff: does the excerpt deliver a complete idea, answer, or punchline?
- Emotional or informational intensity: surprise, stakes, numbers, strong claims.
- Self-containment: a viewer with no context should follow it.

Scoring scale:

- 8-10: exceptional, would perform as a standalone clip.
- 5-7: solid, usable with a good caption.
- 2-4: weak, missing a hook or a payoff.
- 0-1: filler, greetings, or housekeeping talk.

You must respond ONLY with a JSON object like: {"score": 7.5, "hook": "short attention line", "caption": "one-sentence display caption"}

Now rate this excerpt:`
