package service

import (
	"github.com/certexam/certexam-backend/internal/model"
)

// ComputeScore scores a session against its frozen selection. Answers for
// questions outside the selection are ignored. It is a pure function, so
// finishing the same session twice yields the same summary.
func ComputeScore(sess *model.Session, answers []model.Answer) model.ScoreSummary {
	correctByQuestion := make(map[int64]bool, len(answers))
	for _, a := range answers {
		correctByQuestion[a.QuestionID] = a.IsCorrect
	}

	summary := model.ScoreSummary{BlockStats: []model.BlockStat{}}
	for _, blockID := range sess.SelectedMap.BlockIDs() {
		ids, _ := sess.SelectedMap.Get(blockID)
		stat := model.BlockStat{BlockID: blockID, Total: len(ids)}
		for _, qid := range ids {
			correct, answered := correctByQuestion[qid]
			if !answered {
				continue
			}
			summary.Answered++
			if correct {
				stat.Correct++
			}
		}
		stat.Percent = model.Percent(stat.Correct, stat.Total)

		summary.TotalQuestions += stat.Total
		summary.Correct += stat.Correct
		summary.BlockStats = append(summary.BlockStats, stat)
	}
	summary.ScorePercent = model.Percent(summary.Correct, summary.TotalQuestions)
	return summary
}
