package services

import (
	"testing"
	"time"

	"github.com/coursplus/crm/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSweepOverdueTransitionsLapsedNotes(t *testing.T) {
	db := setupTestDB(t)
	fam := seedFamily(t, db, models.FamilyProspect)
	subj := seedSubject(t, db, "Mathématiques", "MATH")
	lc := NewLifecycleService(db, NewSettlementService())
	sw := NewSweeper(db, time.Hour)

	lapsed := basicInput(fam.ID, subj.ID, nil)
	lapsed.Installments = []InstallmentInput{{DueDate: time.Now().AddDate(0, 0, -3), Amount: 100}}
	resLapsed, err := lc.CreateSettlement(lapsed)
	require.NoError(t, err)

	future := basicInput(fam.ID, subj.ID, nil)
	future.Installments = []InstallmentInput{{DueDate: time.Now().AddDate(0, 1, 0), Amount: 100}}
	resFuture, err := lc.CreateSettlement(future)
	require.NoError(t, err)

	n, err := sw.SweepOverdue()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var note models.SettlementNote
	require.NoError(t, db.First(&note, resLapsed.Note.ID).Error)
	require.Equal(t, models.NoteOverdue, note.Status)
	var futureNote models.SettlementNote
	require.NoError(t, db.First(&futureNote, resFuture.Note.ID).Error)
	require.Equal(t, models.NotePending, futureNote.Status)

	// second sweep finds nothing new (no double transitions)
	n, err = sw.SweepOverdue()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSweepNeverTouchesPaidNotes(t *testing.T) {
	db := setupTestDB(t)
	fam := seedFamily(t, db, models.FamilyProspect)
	subj := seedSubject(t, db, "Mathématiques", "MATH")
	lc := NewLifecycleService(db, NewSettlementService())
	sw := NewSweeper(db, time.Hour)

	in := basicInput(fam.ID, subj.ID, nil)
	in.Installments = []InstallmentInput{{DueDate: time.Now().AddDate(0, 0, -3), Amount: 100}}
	res, err := lc.CreateSettlement(in)
	require.NoError(t, err)
	require.NoError(t, lc.MarkPaid(res.Note.ID))

	n, err := sw.SweepOverdue()
	require.NoError(t, err)
	require.Zero(t, n)

	var note models.SettlementNote
	require.NoError(t, db.First(&note, res.Note.ID).Error)
	require.Equal(t, models.NotePaid, note.Status)
}

func TestSweepIgnoresNotesWithoutInstallments(t *testing.T) {
	db := setupTestDB(t)
	fam := seedFamily(t, db, models.FamilyProspect)
	subj := seedSubject(t, db, "Mathématiques", "MATH")
	lc := NewLifecycleService(db, NewSettlementService())
	sw := NewSweeper(db, time.Hour)

	_, err := lc.CreateSettlement(basicInput(fam.ID, subj.ID, nil))
	require.NoError(t, err)

	n, err := sw.SweepOverdue()
	require.NoError(t, err)
	require.Zero(t, n)
}
