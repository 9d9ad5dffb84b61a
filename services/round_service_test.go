package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spec-dating-system/models"
)

func TestRoundService_Start(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")

	round, err := f.rounds.Start("owner-1", spec.ID, "What would we do on a rainy Sunday?", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, round.RoundNumber)
	assert.Equal(t, models.RoundStatusActive, round.Status)
	assert.Equal(t, 2, round.EliminationCount)

	reloaded := f.reloadSpec(t, spec.ID)
	require.NotNil(t, reloaded.CurrentRoundID)
	assert.Equal(t, round.ID, *reloaded.CurrentRoundID)
	assert.Equal(t, models.SpecStatusActive, reloaded.Status)
}

func TestRoundService_Start_OneRoundAtATime(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")

	first, err := f.rounds.Start("owner-1", spec.ID, "Question one", 0)
	require.NoError(t, err)

	_, err = f.rounds.Start("owner-1", spec.ID, "Question two", 0)
	assert.ErrorIs(t, err, ErrRoundInProgress)

	// Closing alone is not enough; the round is still in review.
	_, err = f.rounds.Close("owner-1", first.ID)
	require.NoError(t, err)
	_, err = f.rounds.Start("owner-1", spec.ID, "Question two", 0)
	assert.ErrorIs(t, err, ErrRoundInProgress)

	// Completion clears the pointer and numbering stays contiguous.
	_, err = f.rounds.Complete("owner-1", first.ID)
	require.NoError(t, err)
	assert.Nil(t, f.reloadSpec(t, spec.ID).CurrentRoundID)

	second, err := f.rounds.Start("owner-1", spec.ID, "Question two", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, second.RoundNumber)
}

func TestRoundService_Start_Guards(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")

	_, err := f.rounds.Start("intruder", spec.ID, "Question", 0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.rounds.Start("owner-1", spec.ID, "   ", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.rounds.Start("owner-1", "no-such-spec", "Question", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.specs.Close("owner-1", spec.ID))
	_, err = f.rounds.Start("owner-1", spec.ID, "Question", 0)
	assert.ErrorIs(t, err, ErrSpecClosed)
}

func TestRoundService_SubmitAnswer(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")
	pending := &models.Application{ID: "app-p2", SpecID: spec.ID, UserID: "p2",
		UserRole: models.RoleParticipant, Status: models.ApplicationStatusPending}
	require.NoError(t, f.db.Create(pending).Error)

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)

	answer, err := f.rounds.SubmitAnswer("p1", round.ID, "my answer", nil)
	require.NoError(t, err)
	assert.Equal(t, round.ID, answer.RoundID)
	assert.False(t, answer.IsEliminated)

	// One answer per participant per round.
	_, err = f.rounds.SubmitAnswer("p1", round.ID, "second thoughts", nil)
	assert.ErrorIs(t, err, ErrDuplicateAnswer)

	// Pending applicants cannot answer.
	_, err = f.rounds.SubmitAnswer("p2", round.ID, "let me in", nil)
	assert.ErrorIs(t, err, ErrNotAccepted)

	// Neither can strangers.
	_, err = f.rounds.SubmitAnswer("nobody", round.ID, "hello", nil)
	assert.ErrorIs(t, err, ErrNotAccepted)

	// Empty submissions are rejected up front.
	_, err = f.rounds.SubmitAnswer("p1", round.ID, "  ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// No answers once the round leaves active.
	_, err = f.rounds.Close("owner-1", round.ID)
	require.NoError(t, err)
	f.acceptedParticipant(t, spec.ID, "p3")
	_, err = f.rounds.SubmitAnswer("p3", round.ID, "too late", nil)
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestRoundService_UpdateQuestion(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	round, err := f.rounds.Start("owner-1", spec.ID, "Draft question", 0)
	require.NoError(t, err)

	got, err := f.rounds.UpdateQuestion("owner-1", round.ID, "Final question")
	require.NoError(t, err)
	assert.Equal(t, "Final question", got.QuestionText)
	assert.Equal(t, 1, got.RoundNumber, "editing never creates a new round")

	_, err = f.rounds.UpdateQuestion("intruder", round.ID, "Hijacked")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Editable only while active.
	_, err = f.rounds.Close("owner-1", round.ID)
	require.NoError(t, err)
	_, err = f.rounds.UpdateQuestion("owner-1", round.ID, "Too late")
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestRoundService_CloseAndComplete(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)

	// Completing an active round skips the review stage; refused.
	_, err = f.rounds.Complete("owner-1", round.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	closed, err := f.rounds.Close("owner-1", round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusReviewing, closed.Status)

	// Closing twice fails.
	_, err = f.rounds.Close("owner-1", round.ID)
	assert.ErrorIs(t, err, ErrRoundNotActive)

	done, err := f.rounds.Complete("owner-1", round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusCompleted, done.Status)
	assert.Nil(t, f.reloadSpec(t, spec.ID).CurrentRoundID)
}

func TestRoundService_Eliminate(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")
	f.acceptedParticipant(t, spec.ID, "p2")
	f.acceptedParticipant(t, spec.ID, "p3")

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 2)
	require.NoError(t, err)
	_, err = f.rounds.SubmitAnswer("p2", round.ID, "weak answer", nil)
	require.NoError(t, err)
	_, err = f.rounds.Close("owner-1", round.ID)
	require.NoError(t, err)

	result, err := f.rounds.Eliminate("owner-1", round.ID, []string{"p2", "p3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p2", "p3"}, result.Eliminated)

	// Two went out, one remains: the survivor is the winner.
	require.NotNil(t, result.Winner)
	assert.Equal(t, "p1", result.Winner.UserID)
	assert.Equal(t, models.ApplicationStatusWinner, result.Winner.Status)

	// The eliminated answer is flagged.
	var flagged models.Answer
	require.NoError(t, f.db.First(&flagged, "round_id = ? AND user_id = ?", round.ID, "p2").Error)
	assert.True(t, flagged.IsEliminated)

	// Eliminated participants are notified.
	assert.Len(t, f.notes.byType(NotifyEliminated), 2)
}

func TestRoundService_Eliminate_Guards(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")
	f.acceptedParticipant(t, spec.ID, "p2")

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)

	_, err = f.rounds.Eliminate("owner-1", round.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.rounds.Eliminate("p1", round.ID, []string{"p2"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.rounds.Eliminate("owner-1", round.ID, []string{"stranger"})
	assert.ErrorIs(t, err, ErrNotFound)

	// A completed round cannot eliminate anyone.
	_, err = f.rounds.Close("owner-1", round.ID)
	require.NoError(t, err)
	_, err = f.rounds.Complete("owner-1", round.ID)
	require.NoError(t, err)
	_, err = f.rounds.Eliminate("owner-1", round.ID, []string{"p2"})
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

func TestRoundService_Unresponsive(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")
	f.acceptedParticipant(t, spec.ID, "p2")
	f.acceptedParticipant(t, spec.ID, "p3")

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)
	_, err = f.rounds.SubmitAnswer("p1", round.ID, "on it", nil)
	require.NoError(t, err)

	silent, err := f.rounds.Unresponsive("owner-1", round.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p2", "p3"}, silent)

	_, err = f.rounds.Unresponsive("p1", round.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRoundService_Answers(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")
	f.acceptedParticipant(t, spec.ID, "p2")

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)
	mediaID := "answers/clip.mp4"
	_, err = f.rounds.SubmitAnswer("p1", round.ID, "with a clip", &mediaID)
	require.NoError(t, err)
	_, err = f.rounds.SubmitAnswer("p2", round.ID, "plain text", nil)
	require.NoError(t, err)

	// Owner sees everything with media resolved.
	answers, err := f.rounds.Answers("owner-1", round.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	byUser := map[string]models.Answer{}
	for _, a := range answers {
		byUser[a.UserID] = a
	}
	assert.Equal(t, "https://cdn.test/answers/clip.mp4", byUser["p1"].MediaURL)
	assert.Empty(t, byUser["p2"].MediaURL)

	// Accepted participants see the round too; outsiders do not.
	_, err = f.rounds.Answers("p2", round.ID)
	assert.NoError(t, err)
	_, err = f.rounds.Answers("stranger", round.ID)
	assert.ErrorIs(t, err, ErrNotAccepted)
}

func TestRoundService_StartPublishesEvent(t *testing.T) {
	f := newFixture(t)
	spec := f.createSpec(t, "owner-1")
	f.acceptedParticipant(t, spec.ID, "p1")

	ch := f.hub.Subscribe(spec.ID)
	defer f.hub.Unsubscribe(spec.ID, ch)

	round, err := f.rounds.Start("owner-1", spec.ID, "Question", 0)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, EventRoundStarted, ev.Type)
		assert.Equal(t, spec.ID, ev.SpecID)
		require.NotNil(t, ev.Round)
		assert.Equal(t, round.ID, ev.Round.ID)
	default:
		t.Fatal("expected a round_started event")
	}

	_, err = f.rounds.SubmitAnswer("p1", round.ID, "hello", nil)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, EventRoundAnswered, ev.Type)
		require.NotNil(t, ev.Answer)
		assert.Equal(t, "p1", ev.Answer.UserID)
	default:
		t.Fatal("expected a round_answered event")
	}
}
