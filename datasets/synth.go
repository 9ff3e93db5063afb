package datasets

import (
	"math"
	"math/rand"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	genders         = []string{"M", "F"}
	educationLevels = []string{"High School", "Graduate", "Uneducated", "Unknown", "College", "Post-Graduate", "Doctorate"}
	educationWeight = []float64{0.20, 0.31, 0.15, 0.15, 0.10, 0.05, 0.04}
	maritalStatuses = []string{"Married", "Single", "Unknown", "Divorced"}
	maritalWeight   = []float64{0.46, 0.39, 0.08, 0.07}
	incomes         = []string{"Less than $40K", "$40K - $60K", "$60K - $80K", "$80K - $120K", "$120K +", "Unknown"}
	incomeWeight    = []float64{0.35, 0.18, 0.14, 0.15, 0.07, 0.11}
	cards           = []string{"Blue", "Silver", "Gold", "Platinum"}
	cardWeight      = []float64{0.932, 0.055, 0.011, 0.002}
)

// MakeBankChurn synthesizes n customers with the schema of the bank churn
// dataset. Attrition depends on transaction activity, inactivity, contacts and
// revolving balance, so the churn models have signal to learn. The same seed
// always yields the same table.
func MakeBankChurn(n int, seed int64) dataframe.DataFrame {
	rng := rand.New(rand.NewSource(seed))

	var (
		clientNum   = make([]int, n)
		flag        = make([]string, n)
		age         = make([]int, n)
		gender      = make([]string, n)
		dependents  = make([]int, n)
		education   = make([]string, n)
		marital     = make([]string, n)
		income      = make([]string, n)
		card        = make([]string, n)
		monthsBook  = make([]int, n)
		relCount    = make([]int, n)
		inactive    = make([]int, n)
		contacts    = make([]int, n)
		creditLimit = make([]float64, n)
		revolving   = make([]int, n)
		openToBuy   = make([]float64, n)
		amtChng     = make([]float64, n)
		transAmt    = make([]int, n)
		transCt     = make([]int, n)
		ctChng      = make([]float64, n)
		utilization = make([]float64, n)
	)

	for i := 0; i < n; i++ {
		clientNum[i] = 708000000 + i*997 + rng.Intn(997)
		age[i] = clampInt(int(math.Round(46+8*rng.NormFloat64())), 26, 73)
		gender[i] = genders[rng.Intn(len(genders))]
		dependents[i] = rng.Intn(6)
		education[i] = pick(rng, educationLevels, educationWeight)
		marital[i] = pick(rng, maritalStatuses, maritalWeight)
		income[i] = pick(rng, incomes, incomeWeight)
		card[i] = pick(rng, cards, cardWeight)
		monthsBook[i] = clampInt(int(math.Round(36+8*rng.NormFloat64())), 13, 56)
		relCount[i] = 1 + rng.Intn(6)
		inactive[i] = clampInt(int(math.Round(2.3+rng.NormFloat64())), 0, 6)
		contacts[i] = clampInt(int(math.Round(2.5+1.1*rng.NormFloat64())), 0, 6)

		creditLimit[i] = round2(clampFloat(math.Exp(8.6+0.8*rng.NormFloat64()), 1438.3, 34516))
		if rng.Float64() > 0.25 {
			revolving[i] = rng.Intn(2518)
		}
		openToBuy[i] = round2(creditLimit[i] - float64(revolving[i]))
		utilization[i] = round3(float64(revolving[i]) / creditLimit[i])

		transCt[i] = clampInt(int(math.Round(65+23*rng.NormFloat64())), 10, 139)
		transAmt[i] = clampInt(int(float64(transCt[i])*(60+15*rng.NormFloat64())), 510, 18484)
		amtChng[i] = round3(clampFloat(0.76+0.22*rng.NormFloat64(), 0, 3.4))
		ctChng[i] = round3(clampFloat(0.71+0.24*rng.NormFloat64(), 0, 3.7))

		z := -2.2 -
			0.07*float64(transCt[i]-65) +
			0.45*float64(inactive[i]-2) +
			0.40*float64(contacts[i]-2) -
			0.0012*float64(revolving[i]-1160) -
			0.30*float64(relCount[i]-4) -
			2.0*(ctChng[i]-0.71)
		if gender[i] == "F" {
			z += 0.15
		}
		if income[i] == "Less than $40K" {
			z += 0.10
		}
		flag[i] = ExistingCustomer
		if rng.Float64() < 1/(1+math.Exp(-z)) {
			flag[i] = AttritedCustomer
		}
	}

	return dataframe.New(
		series.New(clientNum, series.Int, ClientNum),
		series.New(flag, series.String, AttritionFlag),
		series.New(age, series.Int, "Customer_Age"),
		series.New(gender, series.String, "Gender"),
		series.New(dependents, series.Int, "Dependent_count"),
		series.New(education, series.String, "Education_Level"),
		series.New(marital, series.String, "Marital_Status"),
		series.New(income, series.String, "Income_Category"),
		series.New(card, series.String, "Card_Category"),
		series.New(monthsBook, series.Int, "Months_on_book"),
		series.New(relCount, series.Int, "Total_Relationship_Count"),
		series.New(inactive, series.Int, "Months_Inactive_12_mon"),
		series.New(contacts, series.Int, "Contacts_Count_12_mon"),
		series.New(creditLimit, series.Float, "Credit_Limit"),
		series.New(revolving, series.Int, "Total_Revolving_Bal"),
		series.New(openToBuy, series.Float, "Avg_Open_To_Buy"),
		series.New(amtChng, series.Float, "Total_Amt_Chng_Q4_Q1"),
		series.New(transAmt, series.Int, "Total_Trans_Amt"),
		series.New(transCt, series.Int, "Total_Trans_Ct"),
		series.New(ctChng, series.Float, "Total_Ct_Chng_Q4_Q1"),
		series.New(utilization, series.Float, "Avg_Utilization_Ratio"),
	)
}

func pick(rng *rand.Rand, values []string, weights []float64) string {
	u := rng.Float64()
	var acc float64
	for i, w := range weights {
		acc += w
		if u < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
