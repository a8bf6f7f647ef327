package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Anamnesi is the intake questionnaire. There is exactly one per client.
type Anamnesi struct {
	ClientID primitive.ObjectID `bson:"_id" json:"clientId"`

	FirstName       string   `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName        string   `bson:"lastName,omitempty" json:"lastName,omitempty"`
	BirthDate       *string  `bson:"birthDate,omitempty" json:"birthDate,omitempty"` // YYYY-MM-DD
	Job             string   `bson:"job,omitempty" json:"job,omitempty"`
	Height          *float64 `bson:"height,omitempty" json:"height,omitempty"`
	Weight          *float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	MealsPerDay     string   `bson:"mealsPerDay,omitempty" json:"mealsPerDay,omitempty"`
	BreakfastType   string   `bson:"breakfastType,omitempty" json:"breakfastType,omitempty"`
	DesiredFoods    string   `bson:"desiredFoods,omitempty" json:"desiredFoods,omitempty"`
	DislikedFoods   string   `bson:"dislikedFoods,omitempty" json:"dislikedFoods,omitempty"`
	Intolerances    string   `bson:"intolerances,omitempty" json:"intolerances,omitempty"`
	DigestionIssues string   `bson:"digestionIssues,omitempty" json:"digestionIssues,omitempty"`
	WorkoutsPerWeek string   `bson:"workoutsPerWeek,omitempty" json:"workoutsPerWeek,omitempty"`
	TrainingDetails string   `bson:"trainingDetails,omitempty" json:"trainingDetails,omitempty"`
	TrainingTime    string   `bson:"trainingTime,omitempty" json:"trainingTime,omitempty"`
	Injuries        string   `bson:"injuries,omitempty" json:"injuries,omitempty"`
	Medications     string   `bson:"medications,omitempty" json:"medications,omitempty"`
	Supplements     string   `bson:"supplements,omitempty" json:"supplements,omitempty"`
	MainGoal        string   `bson:"mainGoal,omitempty" json:"mainGoal,omitempty"`
	ProgramDuration string   `bson:"programDuration,omitempty" json:"programDuration,omitempty"`

	Photos      Photos    `bson:"photos,omitempty" json:"-"`
	SubmittedAt time.Time `bson:"submittedAt" json:"submittedAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
